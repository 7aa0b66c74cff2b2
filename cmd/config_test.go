package cmd

import (
	"testing"

	"github.com/anisan-cli/reelplay/config"
	"github.com/anisan-cli/reelplay/key"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSelectFields(t *testing.T) {
	Convey("Given the registered settings", t, func() {
		Convey("Then the sections should be listed once each in order", func() {
			So(configSections(), ShouldResemble, []string{"cli", "history", "icons", "loadcontrol", "logs", "playback", "tui", "video"})
		})

		Convey("When no filter is given", func() {
			fields, err := selectFields(nil, "")

			Convey("Then every field should be returned sorted by key", func() {
				So(err, ShouldBeNil)
				So(len(fields), ShouldEqual, len(config.Default))
				for i := 1; i < len(fields); i++ {
					So(fields[i-1].Key < fields[i].Key, ShouldBeTrue)
				}
			})
		})

		Convey("When a section is given", func() {
			fields, err := selectFields(nil, "playback")

			Convey("Then only its fields should be returned", func() {
				So(err, ShouldBeNil)
				So(len(fields), ShouldEqual, 4)
				So(fields[0].Key, ShouldEqual, key.PlaybackJoiningTimeMs)
			})
		})

		Convey("When an unknown section or key is given", func() {
			_, err := selectFields(nil, "audio")
			So(err, ShouldNotBeNil)

			_, err = selectFields([]string{"playback.min_bufer_ms"}, "")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, key.PlaybackMinBufferMs)
		})
	})
}
