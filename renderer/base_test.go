package renderer

import (
	"testing"
	"time"

	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStateMachine(t *testing.T) {
	Convey("Given a text renderer over three cues", t, func() {
		opts := source.DefaultSyntheticOptions()
		opts.Duration = 3 * time.Second
		opts.FrameRate = 0
		opts.AudioSampleRate = 0
		mem := source.NewSynthetic(opts)
		out := &textRecorder{}
		r := NewText(out, mem)

		So(r.Kind(), ShouldEqual, KindText)
		So(r.State(), ShouldEqual, StateUnprepared)

		Convey("When preparation takes two attempts", func() {
			mem.SetPrepareDelay(1)

			Convey("Then the renderer should stay unprepared until the source is ready", func() {
				ok, err := r.Prepare(0)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(r.State(), ShouldEqual, StateUnprepared)

				ok, err = r.Prepare(0)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(r.State(), ShouldEqual, StatePrepared)
				So(r.TrackCount(), ShouldEqual, 1)
				So(r.DurationUs(), ShouldEqual, 3*media.MicrosPerSecond)
			})
		})

		Convey("When prepared", func() {
			_, err := r.Prepare(0)
			So(err, ShouldBeNil)

			Convey("Then out of order transitions should panic", func() {
				So(func() { _, _ = r.Prepare(0) }, ShouldPanic)
				So(func() { _ = r.Start() }, ShouldPanic)
				So(func() { _ = r.Stop() }, ShouldPanic)
				So(func() { _ = r.Disable() }, ShouldPanic)
			})

			Convey("Then the full lifecycle should be accepted in order", func() {
				So(r.Enable(0, 0, false), ShouldBeNil)
				So(r.State(), ShouldEqual, StateEnabled)
				So(func() { _ = r.Release() }, ShouldPanic)

				So(r.Start(), ShouldBeNil)
				So(r.State(), ShouldEqual, StateStarted)
				So(func() { _ = r.Disable() }, ShouldPanic)

				So(r.Stop(), ShouldBeNil)
				So(r.Disable(), ShouldBeNil)
				So(r.State(), ShouldEqual, StatePrepared)

				So(r.Release(), ShouldBeNil)
				So(r.State(), ShouldEqual, StateReleased)
				So(mem.References(), ShouldEqual, 0)
				So(func() { _ = r.Release() }, ShouldPanic)
			})

			Convey("Then cues should be delivered as playback reaches them", func() {
				So(r.Enable(0, 0, false), ShouldBeNil)
				So(r.DoSomeWork(0, 0), ShouldBeNil)
				So(out.cues, ShouldResemble, []string{"cue 1"})

				So(r.DoSomeWork(1_500_000, 0), ShouldBeNil)
				So(out.cues, ShouldResemble, []string{"cue 1", "cue 2"})
				So(r.IsEnded(), ShouldBeFalse)

				So(r.DoSomeWork(2_500_000, 0), ShouldBeNil)
				So(r.DoSomeWork(2_600_000, 0), ShouldBeNil)
				So(r.IsEnded(), ShouldBeTrue)
				So(r.IsReady(), ShouldBeTrue)

				Convey("And a seek should clear the text and start over", func() {
					clears := out.clears
					So(r.SeekTo(0), ShouldBeNil)
					So(out.clears, ShouldEqual, clears+1)
					So(r.IsEnded(), ShouldBeFalse)
					So(r.DoSomeWork(0, 0), ShouldBeNil)
					So(out.cues[len(out.cues)-1], ShouldEqual, "cue 1")
				})
			})
		})
	})

	Convey("Given a text renderer over a source without text", t, func() {
		opts := source.DefaultSyntheticOptions()
		opts.CueInterval = 0
		r := NewText(&textRecorder{}, source.NewSynthetic(opts))

		Convey("Then it should prepare with no tracks", func() {
			ok, err := r.Prepare(0)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(r.TrackCount(), ShouldEqual, 0)
		})
	})
}
