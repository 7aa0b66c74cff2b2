package sink

import (
	"strings"
	"sync"

	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/renderer"
)

// Surface counts the frames released to it. It is safe for concurrent use: frames arrive on the
// engine goroutine while the UI reads.
type Surface struct {
	mu            sync.Mutex
	frames        int
	lastFrameUs   int64
	lastReleaseNs int64
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{lastFrameUs: -1}
}

func (s *Surface) RenderFrame(_ []byte, presentationTimeUs, releaseTimeNs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.lastFrameUs = presentationTimeUs
	s.lastReleaseNs = releaseTimeNs
}

// Frames returns the number of frames rendered.
func (s *Surface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// LastFrameUs returns the presentation time of the last frame, or -1.
func (s *Surface) LastFrameUs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrameUs
}

// Text keeps the cues currently displayed.
type Text struct {
	mu      sync.Mutex
	current []string
}

func (t *Text) OnCues(cues []renderer.Cue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = t.current[:0]
	for _, c := range cues {
		t.current = append(t.current, c.Text)
	}
}

// Current returns the displayed text, one cue per line.
func (t *Text) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.current, "\n")
}

var (
	_ codec.Surface       = (*Surface)(nil)
	_ renderer.TextOutput = (*Text)(nil)
)
