package history

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/anisan-cli/reelplay/filesystem"
)

// SavedPosition is the last playback position of one media URI.
type SavedPosition struct {
	URI        string    `json:"uri"`
	PositionMs int64     `json:"position_ms"`
	DurationMs int64     `json:"duration_ms"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Percentage returns how much of the media was played, or 0 when the duration is unknown.
func (s *SavedPosition) Percentage() float64 {
	if s.DurationMs <= 0 {
		return 0
	}
	return min(100, float64(s.PositionMs)*100/float64(s.DurationMs))
}

// Finished reports whether playback stopped close enough to the end that resuming makes no sense.
func (s *SavedPosition) Finished() bool {
	return s.DurationMs > 0 && s.DurationMs-s.PositionMs < finishedThresholdMs
}

func (s *SavedPosition) String() string {
	name := s.URI
	if !strings.Contains(name, "://") {
		name = filepath.Base(name)
	}
	return fmt.Sprintf("%s : %.0f%%", name, s.Percentage())
}

// key normalizes local paths so that the same file resumes regardless of how it was named.
func key(uri string) string {
	path, local := filesystem.LocalPath(uri)
	if !local {
		return uri
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
