// Package history remembers where playback of each media URI stopped.
package history

import (
	"time"

	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/where"
	"github.com/metafates/gache"
)

// finishedThresholdMs is how close to the end a saved position counts as played through.
const finishedThresholdMs = 5000

var cacher = gache.New[map[string]*SavedPosition](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Get returns every saved position keyed by normalized URI.
func Get() (map[string]*SavedPosition, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*SavedPosition), nil
	}
	return cached, nil
}

// Save records the position playback of uri stopped at. A position within a few seconds of the end
// clears the record instead so the next play starts from the beginning.
func Save(uri string, positionMs, durationMs int64) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	record := &SavedPosition{
		URI:        uri,
		PositionMs: max(0, positionMs),
		DurationMs: durationMs,
		UpdatedAt:  time.Now(),
	}
	if record.Finished() {
		delete(saved, key(uri))
	} else {
		saved[key(uri)] = record
	}

	return cacher.Set(saved)
}

// Position returns the resume position of uri in milliseconds, if one was saved.
func Position(uri string) (int64, bool, error) {
	saved, err := Get()
	if err != nil {
		return 0, false, err
	}

	record, ok := saved[key(uri)]
	if !ok {
		return 0, false, nil
	}
	return record.PositionMs, true, nil
}

// Remove deletes the record of uri.
func Remove(uri string) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, key(uri))
	return cacher.Set(saved)
}
