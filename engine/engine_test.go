package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
	. "github.com/smartystreets/goconvey/convey"
)

// pump handles every command queued so far, including the ones queued while handling.
func pump(e *Engine) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		c, err := e.commands.pop(ctx)
		if err != nil {
			return
		}
		e.handle(c)
	}
}

func readyFakes(n int) []*fakeRenderer {
	fakes := make([]*fakeRenderer, n)
	for i := range fakes {
		fakes[i] = newFakeRenderer()
		fakes[i].ready = true
	}
	return fakes
}

func TestEndedAggregation(t *testing.T) {
	for n := 0; n <= 3; n++ {
		Convey(fmt.Sprintf("Given %d ended renderers of unknown duration", n), t, func() {
			fakes := readyFakes(n)
			for _, f := range fakes {
				f.ended = true
			}
			e, _ := newTestEngine()
			e.Prepare(asRenderers(fakes)...)
			pump(e)

			Convey("Then playback should be ended", func() {
				So(e.state, ShouldEqual, StateEnded)
			})
		})

		if n == 0 {
			continue
		}

		Convey(fmt.Sprintf("Given %d renderers where only the last has not ended", n), t, func() {
			fakes := readyFakes(n)
			for _, f := range fakes[:n-1] {
				f.ended = true
			}
			e, _ := newTestEngine()
			e.Prepare(asRenderers(fakes)...)
			pump(e)

			Convey("Then playback should not be ended", func() {
				So(e.state, ShouldEqual, StateReady)
			})
		})
	}

	Convey("Given ended renderers of a known duration", t, func() {
		fakes := readyFakes(2)
		for _, f := range fakes {
			f.ended = true
			f.durationUs = 10_000_000
		}
		e, _ := newTestEngine()
		e.Prepare(asRenderers(fakes)...)
		pump(e)

		Convey("Then playback should not end before the duration", func() {
			So(e.state, ShouldEqual, StateReady)
			So(e.DurationMs(), ShouldEqual, 10_000)

			Convey("And end once the position reaches it", func() {
				e.SeekTo(10_000)
				pump(e)
				So(e.state, ShouldEqual, StateEnded)
			})
		})
	})
}

func TestPrepare(t *testing.T) {
	Convey("Given a renderer that needs three attempts to prepare", t, func() {
		f := newFakeRenderer()
		f.ready = true
		f.prepareAfter = 2
		e, _ := newTestEngine()
		e.handle(command{kind: cmdPrepare, renderers: []renderer.Renderer{f}})

		Convey("Then the engine should keep preparing", func() {
			So(e.state, ShouldEqual, StatePreparing)
			So(f.state, ShouldEqual, renderer.StateUnprepared)

			e.handle(command{kind: cmdIncrementalPrepare, generation: e.generation})
			e.handle(command{kind: cmdIncrementalPrepare, generation: e.generation})

			Convey("And report the tracks once prepared", func() {
				So(f.state, ShouldEqual, renderer.StateEnabled)
				prepared := ofType(events(e), EventPrepared)
				So(prepared, ShouldHaveLength, 1)
				So(prepared[0].State, ShouldEqual, StateReady)
				So(prepared[0].TrackFormats, ShouldHaveLength, 1)
				So(prepared[0].TrackFormats[0][0].MimeType, ShouldEqual, media.MimeTextPlain)
			})
		})

		Convey("Then a stale preparation command should be ignored", func() {
			e.handle(command{kind: cmdIncrementalPrepare, generation: e.generation - 1})
			So(f.prepareCalls, ShouldEqual, 1)
		})
	})

	Convey("Given a renderer deselected before prepare", t, func() {
		f := readyFakes(1)[0]
		e, _ := newTestEngine()
		e.SetSelectedTrack(0, TrackDisabled)
		e.Prepare(f)
		pump(e)

		Convey("Then it should stay prepared but disabled", func() {
			So(f.state, ShouldEqual, renderer.StatePrepared)
			So(e.enabledRenderers, ShouldBeEmpty)
		})
	})
}

func TestStateTransitions(t *testing.T) {
	Convey("Given a buffering engine that should play when ready", t, func() {
		fakes := make([]*fakeRenderer, 2)
		for i := range fakes {
			fakes[i] = newFakeRenderer()
		}
		e, _ := newTestEngine()
		e.SetPlayWhenReady(true)
		e.Prepare(asRenderers(fakes)...)
		pump(e)
		So(e.state, ShouldEqual, StateBuffering)

		Convey("When every renderer becomes ready", func() {
			for _, f := range fakes {
				f.ready = true
			}
			e.handle(command{kind: cmdDoSomeWork, generation: e.generation})

			Convey("Then the engine should be ready and the renderers started", func() {
				So(e.state, ShouldEqual, StateReady)
				for _, f := range fakes {
					So(f.state, ShouldEqual, renderer.StateStarted)
				}
				So(e.standaloneClock.Started(), ShouldBeTrue)
			})

			Convey("When one renderer stalls", func() {
				fakes[1].ready = false
				e.handle(command{kind: cmdDoSomeWork, generation: e.generation})

				Convey("Then the engine should rebuffer with the renderers stopped", func() {
					So(e.state, ShouldEqual, StateBuffering)
					So(e.rebuffering, ShouldBeTrue)
					for _, f := range fakes {
						So(f.state, ShouldEqual, renderer.StateEnabled)
					}
				})
			})
		})

		Convey("When play when ready is cleared", func() {
			e.SetPlayWhenReady(false)
			for _, f := range fakes {
				f.ready = true
			}
			pump(e)
			e.handle(command{kind: cmdDoSomeWork, generation: e.generation})

			Convey("Then the engine should be ready without starting", func() {
				So(e.state, ShouldEqual, StateReady)
				So(fakes[0].state, ShouldEqual, renderer.StateEnabled)
				So(ofType(events(e), EventPlayWhenReadyAck), ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given an engine with buffering thresholds", t, func() {
		src := clock.NewManualSource(0)
		e := New(Options{Clock: src, MinBuffer: 2500 * time.Millisecond, MinRebuffer: 5 * time.Second})
		f := readyFakes(1)[0]
		f.bufferedUs = 100_000
		e.SetPlayWhenReady(true)
		e.Prepare(f)
		pump(e)

		Convey("Then a ready renderer with little data should not start playback", func() {
			So(e.state, ShouldEqual, StateBuffering)
			So(f.state, ShouldEqual, renderer.StateEnabled)
			So(ofType(events(e), EventPrepared)[0].State, ShouldEqual, StateBuffering)
		})

		f.bufferedUs = 3_000_000
		e.handle(command{kind: cmdDoSomeWork, generation: e.generation})
		So(e.state, ShouldEqual, StateReady)
		So(f.state, ShouldEqual, renderer.StateStarted)

		Convey("When it stalls and resumes with little data", func() {
			f.ready = false
			e.handle(command{kind: cmdDoSomeWork, generation: e.generation})
			So(e.state, ShouldEqual, StateBuffering)
			f.ready = true
			f.bufferedUs = 3_000_000
			e.handle(command{kind: cmdDoSomeWork, generation: e.generation})

			Convey("Then the rebuffer threshold should hold playback", func() {
				So(e.state, ShouldEqual, StateBuffering)
				f.bufferedUs = 6_000_000
				e.handle(command{kind: cmdDoSomeWork, generation: e.generation})
				So(e.state, ShouldEqual, StateReady)
			})
		})

		Convey("When it seeks", func() {
			e.SeekTo(1000)
			pump(e)

			Convey("Then the initial threshold should apply from the new position", func() {
				f.bufferedUs = 3_000_000
				e.handle(command{kind: cmdDoSomeWork, generation: e.generation})
				So(e.state, ShouldEqual, StateBuffering)
				f.bufferedUs = 3_500_000
				e.handle(command{kind: cmdDoSomeWork, generation: e.generation})
				So(e.state, ShouldEqual, StateReady)
			})

			Convey("Then a fully buffered renderer should satisfy it", func() {
				f.bufferedUs = media.EndOfTrackUs
				e.handle(command{kind: cmdDoSomeWork, generation: e.generation})
				So(e.state, ShouldEqual, StateReady)
			})
		})
	})
}

func TestSeek(t *testing.T) {
	Convey("Given a ready engine", t, func() {
		fakes := readyFakes(2)
		e, _ := newTestEngine()
		e.Prepare(asRenderers(fakes)...)
		pump(e)

		Convey("When seeking to the current millisecond", func() {
			e.SeekTo(0)
			pump(e)

			Convey("Then nothing should be flushed", func() {
				for _, f := range fakes {
					So(f.seeks, ShouldBeEmpty)
				}
				So(e.pendingSeekCount.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the engine is released with a seek still queued", func() {
			e.SeekTo(1500)
			e.handle(command{kind: cmdRelease})

			Convey("Then the position should no longer report the seek target", func() {
				So(e.pendingSeekCount.Load(), ShouldEqual, 0)
				So(e.PositionMs(), ShouldEqual, 0)
			})
		})

		Convey("When seeking elsewhere", func() {
			e.SeekTo(1500)

			Convey("Then the pending target should be reported until handled", func() {
				So(e.PositionMs(), ShouldEqual, 1500)
				pump(e)
				So(e.pendingSeekCount.Load(), ShouldEqual, 0)
				So(e.PositionMs(), ShouldEqual, 1500)
				for _, f := range fakes {
					So(f.seeks, ShouldResemble, []int64{1_500_000})
				}

				changes := ofType(events(e), EventStateChanged)
				So(changes[len(changes)-2].State, ShouldEqual, StateBuffering)
				So(changes[len(changes)-1].State, ShouldEqual, StateReady)
			})
		})
	})
}

func TestErrors(t *testing.T) {
	boom := errors.New("boom")

	Convey("Given a renderer that fails while working", t, func() {
		fakes := readyFakes(2)
		fakes[1].workErr = boom
		e, _ := newTestEngine()
		e.Prepare(asRenderers(fakes)...)
		pump(e)

		Convey("Then the engine should be idle with one error reported", func() {
			So(e.state, ShouldEqual, StateIdle)
			errs := ofType(events(e), EventError)
			So(errs, ShouldHaveLength, 1)

			var perr *PlaybackError
			So(errors.As(errs[0].Err, &perr), ShouldBeTrue)
			So(perr.CaughtAtTopLevel, ShouldBeFalse)
			So(errors.Is(errs[0].Err, boom), ShouldBeTrue)

			for _, f := range fakes {
				So(f.released, ShouldBeTrue)
			}
		})

		Convey("Then the engine should accept a new prepare", func() {
			next := readyFakes(1)
			e.Prepare(next[0])
			pump(e)
			So(e.state, ShouldEqual, StateReady)
		})
	})

	Convey("Given a renderer that panics while working", t, func() {
		fakes := readyFakes(1)
		fakes[0].panicOnWork = true
		e, _ := newTestEngine()
		e.Prepare(fakes[0])
		pump(e)

		Convey("Then the fault should be reported as caught at top level", func() {
			errs := ofType(events(e), EventError)
			So(errs, ShouldHaveLength, 1)
			var perr *PlaybackError
			So(errors.As(errs[0].Err, &perr), ShouldBeTrue)
			So(perr.CaughtAtTopLevel, ShouldBeTrue)
			So(e.state, ShouldEqual, StateIdle)
		})
	})

	Convey("Given a stalled renderer holding an error", t, func() {
		f := newFakeRenderer()
		f.throwErr = boom
		e, _ := newTestEngine()
		e.Prepare(f)
		pump(e)

		Convey("Then the error should surface", func() {
			errs := ofType(events(e), EventError)
			So(errs, ShouldHaveLength, 1)
			So(errors.Is(errs[0].Err, boom), ShouldBeTrue)
		})
	})

	Convey("Given a ready renderer holding an error", t, func() {
		f := readyFakes(1)[0]
		f.throwErr = boom
		e, _ := newTestEngine()
		e.Prepare(f)
		pump(e)

		Convey("Then the error should stay hidden while it makes progress", func() {
			So(ofType(events(e), EventError), ShouldBeEmpty)
			So(e.state, ShouldEqual, StateReady)
		})
	})

	Convey("Given two renderers that both expose a media clock", t, func() {
		fakes := readyFakes(2)
		fakes[0].clock = &fakeClock{}
		fakes[1].clock = &fakeClock{}
		e, _ := newTestEngine()
		e.Prepare(asRenderers(fakes)...)
		pump(e)

		Convey("Then preparation should fail", func() {
			errs := ofType(events(e), EventError)
			So(errs, ShouldHaveLength, 1)
			So(errors.Is(errs[0].Err, ErrMultipleMediaClocks), ShouldBeTrue)
		})
	})
}

func TestMediaClockAuthority(t *testing.T) {
	Convey("Given a playing engine whose first renderer drives the clock", t, func() {
		rc := &fakeClock{positionUs: 700_000}
		fakes := readyFakes(2)
		fakes[0].clock = rc
		e, _ := newTestEngine()
		e.SetPlayWhenReady(true)
		e.Prepare(asRenderers(fakes)...)
		pump(e)

		Convey("Then the position should follow the renderer clock", func() {
			So(e.PositionMs(), ShouldEqual, 700)
			So(fakes[1].lastWorkPosUs, ShouldEqual, 700_000)
		})

		Convey("When the clock renderer is deselected", func() {
			e.SetSelectedTrack(0, TrackDisabled)
			pump(e)
			rc.positionUs = 900_000
			e.handle(command{kind: cmdDoSomeWork, generation: e.generation})

			Convey("Then the standalone clock should take over from the last position", func() {
				So(fakes[0].state, ShouldEqual, renderer.StatePrepared)
				So(e.rendererClock, ShouldBeNil)
				So(e.PositionMs(), ShouldEqual, 700)
			})

			Convey("When it is selected again", func() {
				e.SetSelectedTrack(0, 0)
				pump(e)

				Convey("Then it should join the playback in progress", func() {
					So(fakes[0].joining, ShouldBeTrue)
					So(fakes[0].state, ShouldEqual, renderer.StateStarted)
					So(e.PositionMs(), ShouldEqual, 900)
				})
			})
		})
	})
}

func TestLoop(t *testing.T) {
	Convey("Given a running engine", t, func() {
		e := New(Options{Clock: clock.NewManualSource(0)})
		done := make(chan error, 1)
		go func() { done <- e.Run(context.Background()) }()

		Convey("Then a blocking message should be handled before returning", func() {
			f := newFakeRenderer()
			So(e.BlockingSendMessage(f, 1, "hello"), ShouldBeNil)
			So(f.messages, ShouldResemble, []any{"hello"})

			boom := errors.New("rejected")
			So(e.BlockingSendMessage(f, 1, boom), ShouldEqual, boom)
			e.Release()
		})

		Convey("Then release should be idempotent", func() {
			e.Release()
			e.Release()
			So(<-done, ShouldBeNil)
			So(e.BlockingSendMessage(newFakeRenderer(), 1, nil), ShouldEqual, ErrReleased)

			_, err := e.NextEvent(context.Background())
			for err == nil {
				_, err = e.NextEvent(context.Background())
			}
			So(err, ShouldEqual, ErrReleased)
		})
	})

	Convey("Given an engine whose context is cancelled", t, func() {
		e := New(Options{Clock: clock.NewManualSource(0)})
		f := readyFakes(1)[0]
		e.Prepare(f)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then running should release it", func() {
			So(e.Run(ctx), ShouldBeNil)
			So(f.released, ShouldBeTrue)
			e.Release()
		})
	})
}
