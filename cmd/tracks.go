package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/media"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// Renderer slots of a playback session, in the order they are prepared.
const (
	slotVideo = iota
	slotAudio
	slotText
)

var slotNames = []string{"video", "audio", "text"}

// trackQuery selects a track for one renderer slot, e.g. audio=eng or video=#1.
type trackQuery struct {
	slot  int
	query string
}

func parseTrackQuery(raw string) (trackQuery, error) {
	kind, query, ok := strings.Cut(raw, "=")
	if !ok || query == "" {
		return trackQuery{}, fmt.Errorf("invalid track selection %q, expected kind=query", raw)
	}

	slot := lo.IndexOf(slotNames, strings.ToLower(strings.TrimSpace(kind)))
	if slot == -1 {
		return trackQuery{}, fmt.Errorf("unknown track kind %q, expected one of %s", kind, strings.Join(slotNames, ", "))
	}

	return trackQuery{slot: slot, query: strings.TrimSpace(query)}, nil
}

// trackLabel is what track queries are matched against.
func trackLabel(format *media.Format) string {
	parts := []string{format.MimeType}
	if format.Language != "" {
		parts = append(parts, format.Language)
	}
	parts = append(parts, "id "+format.TrackID)
	return strings.Join(parts, " ")
}

// trackLister is the part of the player a track query is resolved against.
type trackLister interface {
	TrackCount(rendererIndex int) int
	TrackFormat(rendererIndex, trackIndex int) *media.Format
}

// resolve returns the track index the query selects, or engine.TrackDisabled for "off".
func (q trackQuery) resolve(tracks trackLister) (int, error) {
	count := tracks.TrackCount(q.slot)

	switch strings.ToLower(q.query) {
	case "off", "none":
		return engine.TrackDisabled, nil
	}

	if index, ok := strings.CutPrefix(q.query, "#"); ok {
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 || n >= count {
			return 0, fmt.Errorf("no %s track %s, there are %d", slotNames[q.slot], q.query, count)
		}
		return n, nil
	}

	labels := make([]string, count)
	for i := range count {
		labels[i] = trackLabel(tracks.TrackFormat(q.slot, i))
	}

	ranks := fuzzy.RankFindNormalizedFold(q.query, labels)
	if len(ranks) == 0 {
		return 0, fmt.Errorf("no %s track matches %q", slotNames[q.slot], q.query)
	}

	best := lo.MinBy(ranks, func(a, b fuzzy.Rank) bool {
		return a.Distance < b.Distance
	})
	return best.OriginalIndex, nil
}

const trackOff = "off"

// pickTracks asks for a track of every slot offering a choice.
func pickTracks(tracks trackLister) ([]trackQuery, error) {
	var picked []trackQuery
	for slot, name := range slotNames {
		count := tracks.TrackCount(slot)
		if count < 2 {
			continue
		}

		options := make([]string, count, count+1)
		for i := range count {
			options[i] = fmt.Sprintf("#%d %s", i, trackLabel(tracks.TrackFormat(slot, i)))
		}
		options = append(options, trackOff)

		var answer string
		prompt := &survey.Select{
			Message: "Select " + name + " track",
			Options: options,
		}
		if err := survey.AskOne(prompt, &answer); err != nil {
			return nil, err
		}

		query := trackOff
		if answer != trackOff {
			query, _, _ = strings.Cut(answer, " ")
		}
		picked = append(picked, trackQuery{slot: slot, query: query})
	}
	return picked, nil
}
