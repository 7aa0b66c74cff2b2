package sink

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
	. "github.com/smartystreets/goconvey/convey"
)

// 1kHz mono: one frame per millisecond, two bytes per frame.
func testFormat() *media.Format {
	return media.NewAudioFormat("a", media.MimeAudioRaw, media.NoValue, media.NoValue, media.UnknownTimeUs, 1, 1000, nil, "en")
}

func TestAudio(t *testing.T) {
	Convey("Given an initialized sink with a 100ms buffer", t, func() {
		src := clock.NewManualSource(time.Second)
		var out bytes.Buffer
		a := NewAudio(AudioOptions{Clock: src, BufferDuration: 100 * time.Millisecond, Output: &out})
		So(a.Configure(testFormat()), ShouldBeNil)
		So(a.Initialize(), ShouldBeNil)
		So(a.BufferSizeUs(), ShouldEqual, 100_000)
		So(a.CurrentPositionUs(false), ShouldEqual, media.UnknownTimeUs)

		Convey("When 50ms are written", func() {
			result, err := a.HandleBuffer(make([]byte, 100), 0)
			So(err, ShouldBeNil)
			So(result&renderer.SinkBufferConsumed, ShouldNotEqual, 0)
			So(out.Len(), ShouldEqual, 100)

			Convey("Then the head should not move while paused", func() {
				src.Advance(20 * time.Millisecond)
				So(a.CurrentPositionUs(false), ShouldEqual, 0)
				So(a.HasPendingData(), ShouldBeTrue)
			})

			Convey("Then the head should follow the clock while playing", func() {
				a.Play()
				src.Advance(20 * time.Millisecond)
				So(a.CurrentPositionUs(false), ShouldEqual, 20_000)

				Convey("And stall once the buffer runs dry", func() {
					src.Advance(100 * time.Millisecond)
					So(a.CurrentPositionUs(false), ShouldEqual, 50_000)
					So(a.HasPendingData(), ShouldBeFalse)

					_, err := a.HandleBuffer(make([]byte, 20), 50_000)
					So(err, ShouldBeNil)
					src.Advance(5 * time.Millisecond)
					So(a.CurrentPositionUs(false), ShouldEqual, 55_000)
				})
			})

			Convey("Then a buffer that does not fit should be refused", func() {
				result, err := a.HandleBuffer(make([]byte, 120), 50_000)
				So(err, ShouldBeNil)
				So(result&renderer.SinkBufferConsumed, ShouldEqual, 0)
			})

			Convey("Then a jump in timestamps should be reported", func() {
				result, err := a.HandleBuffer(make([]byte, 2), 5_000_000)
				So(err, ShouldBeNil)
				So(result&renderer.SinkPositionDiscontinuity, ShouldNotEqual, 0)
				So(a.CurrentPositionUs(false), ShouldEqual, 4_950_000)
			})

			Convey("Then a reset should forget the position", func() {
				a.Reset()
				So(a.IsInitialized(), ShouldBeFalse)
				So(a.HasPendingData(), ShouldBeFalse)
			})
		})

		Convey("When the volume is lowered", func() {
			a.SetVolume(0.5)
			_, err := a.HandleBuffer([]byte{0x00, 0x40}, 0)
			So(err, ShouldBeNil)

			Convey("Then the output should be scaled", func() {
				So(out.Bytes(), ShouldResemble, []byte{0x00, 0x20})
			})
		})
	})

	Convey("Given an encoded format", t, func() {
		a := NewAudio(AudioOptions{})
		err := a.Configure(media.NewAudioFormat("a", media.MimeAudioAAC, 0, 0, 0, 2, 44100, nil, ""))

		Convey("Then configuration should fail", func() {
			So(errors.Is(err, ErrUnsupportedEncoding), ShouldBeTrue)
		})
	})
}

func TestSurfaceAndText(t *testing.T) {
	Convey("Given a surface and a text output", t, func() {
		s := NewSurface()
		text := &Text{}

		Convey("Then frames and cues should be recorded", func() {
			So(s.LastFrameUs(), ShouldEqual, -1)
			s.RenderFrame(nil, 40_000, 1)
			So(s.Frames(), ShouldEqual, 1)
			So(s.LastFrameUs(), ShouldEqual, 40_000)

			text.OnCues([]renderer.Cue{{Text: "a"}, {Text: "b"}})
			So(text.Current(), ShouldEqual, "a\nb")
			text.OnCues(nil)
			So(text.Current(), ShouldBeEmpty)
		})
	})
}
