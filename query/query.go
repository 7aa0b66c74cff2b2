// Package query remembers the media that was played and suggests it back, most played first.
package query

import (
	"strings"

	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/where"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/metafates/gache"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/exp/slices"
)

type queryRecord struct {
	Rank  int    `json:"rank"`
	Query string `json:"query"`
}

var cacher = gache.New[map[string]*queryRecord](
	&gache.Options{
		Path:       where.Queries(),
		FileSystem: &filesystem.GacheFs{},
	},
)

var suggestionCache = make(map[string][]*queryRecord)

// Remember records a played uri or raises its rank by weight.
func Remember(uri string, weight int) error {
	uri = sanitize(uri)
	if uri == "" {
		return nil
	}

	cached, expired, err := cacher.Get()
	if expired || err != nil || cached == nil {
		cached = make(map[string]*queryRecord)
	}

	if record, ok := cached[uri]; ok {
		record.Rank += weight
	} else {
		cached[uri] = &queryRecord{Rank: weight, Query: uri}
	}

	clear(suggestionCache)
	return cacher.Set(cached)
}

// Suggest returns the best ranked uri matching a partial input.
func Suggest(partial string) mo.Option[string] {
	suggestions := SuggestMany(partial)
	if len(suggestions) == 0 {
		return mo.None[string]()
	}
	return mo.Some(suggestions[0])
}

// SuggestMany returns every remembered uri fuzzily matching a partial input, by descending rank.
func SuggestMany(partial string) []string {
	partial = sanitize(partial)
	var records []*queryRecord

	if prev, ok := suggestionCache[partial]; ok {
		records = prev
	} else {
		cached, expired, err := cacher.Get()
		if err != nil || expired || cached == nil {
			return []string{}
		}

		for _, record := range cached {
			if fuzzy.MatchFold(partial, record.Query) {
				records = append(records, record)
			}
		}

		slices.SortFunc(records, func(a, b *queryRecord) int {
			if a.Rank != b.Rank {
				return b.Rank - a.Rank
			}
			return strings.Compare(a.Query, b.Query)
		})

		suggestionCache[partial] = records
	}

	return lo.Map(records, func(r *queryRecord, _ int) string {
		return r.Query
	})
}

func sanitize(uri string) string {
	return strings.TrimSpace(uri)
}
