package engine

import (
	"context"
	"fmt"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
)

// fakeRenderer is a scriptable renderer that enforces the same transitions as the real ones.
type fakeRenderer struct {
	state  renderer.State
	tracks []*media.Format

	prepareCalls  int
	prepareAfter  int
	ready, ended  bool
	durationUs    int64
	bufferedUs    int64
	clock         clock.MediaClock
	workErr       error
	throwErr      error
	panicOnWork   bool
	works         int
	seeks         []int64
	enabledTrack  int
	joining       bool
	released      bool
	messages      []any
	lastWorkPosUs int64
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		tracks:     []*media.Format{media.NewTextFormat("1", media.MimeTextPlain, media.NoValue, media.UnknownTimeUs, "")},
		durationUs: media.UnknownTimeUs,
		bufferedUs: media.EndOfTrackUs,
	}
}

func (f *fakeRenderer) check(op string, allowed ...renderer.State) {
	for _, s := range allowed {
		if f.state == s {
			return
		}
	}
	panic(fmt.Sprintf("fake: %s in state %s", op, f.state))
}

func (f *fakeRenderer) Kind() renderer.Kind { return renderer.KindOther }
func (f *fakeRenderer) State() renderer.State { return f.state }
func (f *fakeRenderer) TrackCount() int { return len(f.tracks) }
func (f *fakeRenderer) IsReady() bool { return f.ready }
func (f *fakeRenderer) IsEnded() bool { return f.ended }
func (f *fakeRenderer) DurationUs() int64 { return f.durationUs }
func (f *fakeRenderer) MaybeThrowError() error { return f.throwErr }

func (f *fakeRenderer) Format(track int) *media.Format {
	return f.tracks[track]
}

func (f *fakeRenderer) BufferedPositionUs() int64 {
	return f.bufferedUs
}

func (f *fakeRenderer) MediaClock() clock.MediaClock {
	return f.clock
}

func (f *fakeRenderer) HandleMessage(_ int, payload any) error {
	f.messages = append(f.messages, payload)
	if err, ok := payload.(error); ok {
		return err
	}
	return nil
}

func (f *fakeRenderer) Prepare(int64) (bool, error) {
	f.check("prepare", renderer.StateUnprepared)
	f.prepareCalls++
	if f.prepareCalls <= f.prepareAfter {
		return false, nil
	}
	f.state = renderer.StatePrepared
	return true, nil
}

func (f *fakeRenderer) Enable(track int, _ int64, joining bool) error {
	f.check("enable", renderer.StatePrepared)
	f.state = renderer.StateEnabled
	f.enabledTrack = track
	f.joining = joining
	return nil
}

func (f *fakeRenderer) Start() error {
	f.check("start", renderer.StateEnabled)
	f.state = renderer.StateStarted
	return nil
}

func (f *fakeRenderer) Stop() error {
	f.check("stop", renderer.StateStarted)
	f.state = renderer.StateEnabled
	return nil
}

func (f *fakeRenderer) Disable() error {
	f.check("disable", renderer.StateEnabled)
	f.state = renderer.StatePrepared
	return nil
}

func (f *fakeRenderer) Release() error {
	f.check("release", renderer.StateUnprepared, renderer.StatePrepared)
	f.state = renderer.StateReleased
	f.released = true
	return nil
}

func (f *fakeRenderer) DoSomeWork(positionUs, _ int64) error {
	f.check("work", renderer.StateEnabled, renderer.StateStarted)
	if f.panicOnWork {
		panic("fake: work exploded")
	}
	f.works++
	f.lastWorkPosUs = positionUs
	return f.workErr
}

func (f *fakeRenderer) SeekTo(positionUs int64) error {
	f.check("seek", renderer.StateEnabled)
	f.seeks = append(f.seeks, positionUs)
	return nil
}

// fakeClock is a renderer media clock.
type fakeClock struct {
	positionUs int64
}

func (c *fakeClock) PositionUs() int64 {
	return c.positionUs
}

// events drains the events queued so far.
func events(e *Engine) []Event {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out []Event
	for {
		ev, err := e.NextEvent(ctx)
		if err != nil {
			return out
		}
		out = append(out, ev)
	}
}

func ofType(evs []Event, t EventType) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func asRenderers(fakes []*fakeRenderer) []renderer.Renderer {
	out := make([]renderer.Renderer, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

// newTestEngine returns an engine driven by direct calls on a manual clock with no buffering threshold.
func newTestEngine() (*Engine, *clock.ManualSource) {
	src := clock.NewManualSource(0)
	return New(Options{Clock: src}), src
}
