package query

import (
	"testing"

	"github.com/anisan-cli/reelplay/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestQuery(t *testing.T) {
	Convey("Given played media", t, func() {
		So(Remember("/media/trailer.mp4", 1), ShouldBeNil)
		So(Remember("https://example.com/Trailer-hd.mp4", 10), ShouldBeNil)

		Convey("Suggestions should be ranked by play count", func() {
			s := SuggestMany("trailer")
			So(len(s), ShouldBeGreaterThanOrEqualTo, 2)
			So(s[0], ShouldEqual, "https://example.com/Trailer-hd.mp4")
			So(Suggest("trailer").MustGet(), ShouldEqual, s[0])
		})

		Convey("Playing again should raise the rank", func() {
			So(Remember(" /media/trailer.mp4 ", 100), ShouldBeNil)
			So(Suggest("trailer").MustGet(), ShouldEqual, "/media/trailer.mp4")
		})

		Convey("Unknown media should not be suggested", func() {
			So(Suggest("zzz").IsAbsent(), ShouldBeTrue)
		})

		Convey("Blank input should not be remembered", func() {
			So(Remember("   ", 1), ShouldBeNil)
			So(SuggestMany(""), ShouldNotContain, "")
		})
	})
}
