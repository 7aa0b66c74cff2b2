package cmd

import (
	"context"
	"testing"

	"github.com/anisan-cli/reelplay/internal/cache"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/mp4source"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProbeCache(t *testing.T) {
	Convey("Given a cached probe of a remote file", t, func() {
		// nothing listens on port 1, so only the cache can answer
		uri := "http://127.0.0.1:1/clip.mp4"
		cached := []*mp4source.FormatInfo{{
			Format:    media.NewAudioFormat("1", media.MimeAudioAAC, 0, 100, 3_000_000, 2, 48000, nil, "eng"),
			Fragments: 3,
			Samples:   30,
			Bytes:     3000,
		}}
		So(cache.Write(cache.Key(uri, "probe"), cached), ShouldBeNil)

		Convey("it should be served without fetching", func() {
			infos, err := probe(context.Background(), uri, true)
			So(err, ShouldBeNil)
			So(infos, ShouldHaveLength, 1)
			So(infos[0].Format.Language, ShouldEqual, "eng")
			So(infos[0].Samples, ShouldEqual, 30)
		})

		Convey("bypassing the cache should fetch", func() {
			_, err := probe(context.Background(), uri, false)
			So(err, ShouldNotBeNil)
		})

		Convey("local files should never be cached", func() {
			_, err := probe(context.Background(), "/media/missing.mp4", true)
			So(err, ShouldNotBeNil)
		})
	})
}
