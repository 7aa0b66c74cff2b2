package source

import (
	"errors"
	"testing"
	"time"

	"github.com/anisan-cli/reelplay/media"
	. "github.com/smartystreets/goconvey/convey"
)

func testTrack() Track {
	format := media.NewAudioFormat("a", media.MimeAudioRaw, media.NoValue, 16, 400_000, 2, 48000, nil, "en")
	changed := format.WithMaxInputSize(32)
	return Track{
		Format: format,
		Samples: []Sample{
			{TimeUs: 0, Flags: media.FlagSync, Data: []byte{0}},
			{TimeUs: 100_000, Data: []byte{1}},
			{TimeUs: 200_000, Flags: media.FlagSync, Data: []byte{2}, Format: changed},
			{TimeUs: 300_000, Data: []byte{3}},
		},
	}
}

func TestMemory(t *testing.T) {
	Convey("Given a memory source", t, func() {
		m := NewMemory(testTrack())
		r := m.Register()
		fh := &media.FormatHolder{}
		sh := media.NewSampleHolder(media.BufferReplacementNormal)

		Convey("When preparation is delayed", func() {
			m.SetPrepareDelay(2)

			Convey("Then prepare should succeed on the third call", func() {
				for _, want := range []bool{false, false, true, true} {
					ok, err := r.Prepare(0)
					So(err, ShouldBeNil)
					So(ok, ShouldEqual, want)
				}
			})
		})

		Convey("When a track is enabled", func() {
			ok, _ := r.Prepare(0)
			So(ok, ShouldBeTrue)
			r.Enable(0, 0)

			Convey("Then the format should be read before samples", func() {
				res, err := r.ReadData(0, 0, fh, sh)
				So(err, ShouldBeNil)
				So(res, ShouldEqual, FormatRead)
				So(fh.Format.MaxInputSize, ShouldEqual, 16)

				res, _ = r.ReadData(0, 0, fh, sh)
				So(res, ShouldEqual, SampleRead)
				So(sh.Data, ShouldResemble, []byte{0})
				So(sh.IsSyncFrame(), ShouldBeTrue)
			})

			Convey("Then a mid-stream format change should be announced", func() {
				var results []ReadResult
				for range 7 {
					sh.ClearData()
					res, _ := r.ReadData(0, 0, fh, sh)
					results = append(results, res)
				}
				So(results, ShouldResemble, []ReadResult{FormatRead, SampleRead, SampleRead, FormatRead, SampleRead, SampleRead, EndOfStream})
				So(fh.Format.MaxInputSize, ShouldEqual, 32)
			})

			Convey("Then samples beyond the available position should not be read", func() {
				m.SetAvailableUs(100_000)
				_, _ = r.ReadData(0, 0, fh, sh)
				res, _ := r.ReadData(0, 0, fh, sh)
				So(res, ShouldEqual, SampleRead)
				res, _ = r.ReadData(0, 0, fh, sh)
				So(res, ShouldEqual, NothingRead)
				So(r.ContinueBuffering(0, 0), ShouldBeFalse)
				So(r.BufferedPositionUs(), ShouldEqual, 100_000)
			})

			Convey("Then a seek should report a discontinuity and restart at a sync sample", func() {
				r.SeekToUs(250_000)
				res, _ := r.ReadData(0, 0, fh, sh)
				So(res, ShouldEqual, NothingRead)
				So(r.ReadDiscontinuity(0), ShouldEqual, 250_000)
				So(r.ReadDiscontinuity(0), ShouldEqual, NoDiscontinuity)

				res, _ = r.ReadData(0, 0, fh, sh)
				So(res, ShouldEqual, FormatRead)
				res, _ = r.ReadData(0, 0, fh, sh)
				So(res, ShouldEqual, SampleRead)
				So(sh.TimeUs, ShouldEqual, 200_000)
				So(sh.IsDecodeOnly(), ShouldBeTrue)
			})
		})

		Convey("When an error is injected", func() {
			boom := errors.New("boom")
			m.SetError(boom)

			Convey("Then MaybeThrowError should surface it", func() {
				So(r.MaybeThrowError(), ShouldEqual, boom)
			})
		})

		Convey("When every reader is released", func() {
			r2 := m.Register()
			r.Release()
			So(m.References(), ShouldEqual, 1)
			r2.Release()

			Convey("Then releasing again should panic", func() {
				So(m.References(), ShouldEqual, 0)
				So(func() { r.Release() }, ShouldPanic)
			})
		})
	})
}

func TestSynthetic(t *testing.T) {
	Convey("Given default synthetic media", t, func() {
		m := NewSynthetic(DefaultSyntheticOptions())

		Convey("Then it should carry video, audio and text", func() {
			So(m.TrackCount(), ShouldEqual, 3)
			So(media.IsVideo(m.Format(0).MimeType), ShouldBeTrue)
			So(media.IsAudio(m.Format(1).MimeType), ShouldBeTrue)
			So(media.IsText(m.Format(2).MimeType), ShouldBeTrue)
			So(len(m.tracks[0].Samples), ShouldEqual, 240)
			So(len(m.tracks[2].Samples), ShouldEqual, 10)
			So(m.Format(0).DurationUs, ShouldEqual, (10 * time.Second).Microseconds())
		})
	})
}
