package mp4source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/loadcontrol"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
	"github.com/stretchr/testify/require"
)

const clipPath = "/media/clip.mp4"

func init() {
	filesystem.SetMemMapFs()
}

func writeClip(t *testing.T, seconds int) {
	t.Helper()
	require.NoError(t, filesystem.API().WriteFile(clipPath, buildClip(t, seconds), 0o644))
}

type fixture struct {
	allocator *loadcontrol.DefaultAllocator
	control   *loadcontrol.DefaultLoadControl
	source    *Source
	reader    source.Reader
}

func newFixture(t *testing.T, uri string, allocationSize, contribution int) *fixture {
	t.Helper()

	allocator := loadcontrol.NewDefaultAllocator(allocationSize)
	control := loadcontrol.NewDefault(allocator, loadcontrol.Options{
		LowWatermark:   30 * time.Second,
		HighWatermark:  60 * time.Second,
		LowBufferLoad:  0.2,
		HighBufferLoad: 0.8,
		Lock:           loadcontrol.NewPriorityLock(),
	})

	src := New(uri, Options{
		LoadControl:            control,
		BufferSizeContribution: contribution,
		Lock:                   loadcontrol.NewPriorityLock(),
		MinLoadableRetryCount:  1,
		RetryBackoff:           time.Millisecond,
		PollInterval:           5 * time.Millisecond,
	})
	f := &fixture{allocator: allocator, control: control, source: src, reader: src.Register()}
	t.Cleanup(func() { f.reader.Release() })
	return f
}

func (f *fixture) prepare(t *testing.T) {
	t.Helper()

	var err error
	require.Eventually(t, func() bool {
		var ok bool
		ok, err = f.reader.Prepare(0)
		return ok || err != nil
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
}

type readSample struct {
	timeUs int64
	flags  media.SampleFlags
	data   string
}

// drain reads a track until it ends, failing after timeout.
func drain(t *testing.T, r source.Reader, track int) (*media.Format, []readSample) {
	t.Helper()

	var (
		format  *media.Format
		samples []readSample
		holder  media.FormatHolder
		sample  = media.NewSampleHolder(media.BufferReplacementNormal)
		err     error
	)
	require.Eventually(t, func() bool {
		for {
			r.ContinueBuffering(track, 0)
			sample.ClearData()
			var result source.ReadResult
			result, err = r.ReadData(track, 0, &holder, sample)
			if err != nil {
				return true
			}
			switch result {
			case source.FormatRead:
				format = holder.Format
			case source.SampleRead:
				samples = append(samples, readSample{sample.TimeUs, sample.Flags, string(sample.Data)})
			case source.EndOfStream:
				return true
			default:
				return false
			}
		}
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	return format, samples
}

func TestParse(t *testing.T) {
	writeClip(t, 3)

	infos, err := Probe(context.Background(), clipPath)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	audio := infos[0]
	require.Equal(t, media.MimeAudioAAC, audio.Format.MimeType)
	require.Equal(t, 2, audio.Format.ChannelCount)
	require.Equal(t, 48000, audio.Format.SampleRate)
	require.Equal(t, "eng", audio.Format.Language)
	require.Equal(t, int64(3_000_000), audio.Format.DurationUs)
	require.Equal(t, fixtureSampleSize, audio.Format.MaxInputSize)
	require.Equal(t, [][]byte{aacLC48kStereo}, audio.Format.InitializationData)
	require.Equal(t, 3, audio.Fragments)
	require.Equal(t, 3*fixtureSamplesPerFrag, audio.Samples)
	require.Equal(t, 3*fixtureSamplesPerFrag*fixtureSampleSize, audio.Bytes)

	text := infos[1]
	require.Equal(t, media.MimeTextVTT, text.Format.MimeType)
	require.Equal(t, "swe", text.Format.Language)
	require.Equal(t, int64(3_000_000), text.Format.DurationUs)
	require.Equal(t, 3, text.Samples)
}

func TestScaleToUs(t *testing.T) {
	require.Equal(t, int64(1_000_000), scaleToUs(90_000, 90_000))
	require.Equal(t, int64(33_366), scaleToUs(1001, 30_000))
	// ten years at 90kHz
	require.Equal(t, int64(315_360_000_000_000), scaleToUs(90_000*315_360_000, 90_000))
}

func TestReadAll(t *testing.T) {
	writeClip(t, 3)
	f := newFixture(t, clipPath, 1024, 1<<20)
	f.prepare(t)

	require.Equal(t, 2, f.reader.TrackCount())
	require.Equal(t, media.UnknownTimeUs, f.reader.BufferedPositionUs())

	f.reader.Enable(0, 0)
	f.reader.Enable(1, 0)

	format, audio := drain(t, f.reader, 0)
	require.Equal(t, media.MimeAudioAAC, format.MimeType)
	require.Len(t, audio, 3*fixtureSamplesPerFrag)
	for i, s := range audio {
		require.Equal(t, int64(i*fixtureSampleDur*1000), s.timeUs)
		require.Equal(t, media.FlagSync, s.flags)
		require.Len(t, s.data, fixtureSampleSize)
	}

	format, text := drain(t, f.reader, 1)
	require.Equal(t, media.MimeTextVTT, format.MimeType)
	require.Equal(t, []readSample{
		{0, media.FlagSync, "cue 0"},
		{1_000_000, media.FlagSync, "cue 1"},
		{2_000_000, media.FlagSync, "cue 2"},
	}, text)

	require.Equal(t, media.EndOfTrackUs, f.reader.BufferedPositionUs())
	require.Zero(t, f.allocator.TotalBytesAllocated())
	require.NoError(t, f.reader.MaybeThrowError())
}

func TestLoadControlAdmission(t *testing.T) {
	writeClip(t, 5)
	// One audio fragment takes ten allocations, the target admits two fragments.
	f := newFixture(t, clipPath, fixtureSampleSize, 2*fixtureSamplesPerFrag*fixtureSampleSize)
	f.prepare(t)
	f.reader.Enable(0, 0)

	full := 2 * fixtureSamplesPerFrag * fixtureSampleSize
	require.Eventually(t, func() bool {
		return f.allocator.TotalBytesAllocated() == full
	}, 5*time.Second, time.Millisecond)
	require.True(t, f.reader.ContinueBuffering(0, 0))
	require.Equal(t, int64(2_000_000), f.reader.BufferedPositionUs())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, full, f.allocator.TotalBytesAllocated())

	var holder media.FormatHolder
	sample := media.NewSampleHolder(media.BufferReplacementNormal)
	result, err := f.reader.ReadData(0, 0, &holder, sample)
	require.NoError(t, err)
	require.Equal(t, source.FormatRead, result)
	for range fixtureSamplesPerFrag {
		sample.ClearData()
		result, err = f.reader.ReadData(0, 0, &holder, sample)
		require.NoError(t, err)
		require.Equal(t, source.SampleRead, result)
	}

	require.Eventually(t, func() bool {
		return f.reader.BufferedPositionUs() == 3_000_000
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, full, f.allocator.TotalBytesAllocated())
}

func TestSeek(t *testing.T) {
	writeClip(t, 4)
	f := newFixture(t, clipPath, 1024, 1<<20)
	f.prepare(t)
	f.reader.Enable(0, 0)

	require.Eventually(t, func() bool {
		return f.reader.BufferedPositionUs() == media.EndOfTrackUs
	}, 5*time.Second, time.Millisecond)

	f.reader.SeekToUs(2_500_000)

	var holder media.FormatHolder
	sample := media.NewSampleHolder(media.BufferReplacementNormal)
	result, err := f.reader.ReadData(0, 0, &holder, sample)
	require.NoError(t, err)
	require.Equal(t, source.NothingRead, result)
	require.Equal(t, int64(2_500_000), f.reader.ReadDiscontinuity(0))
	require.Equal(t, source.NoDiscontinuity, f.reader.ReadDiscontinuity(0))

	_, samples := drain(t, f.reader, 0)
	require.Len(t, samples, 2*fixtureSamplesPerFrag)
	require.Equal(t, int64(2_000_000), samples[0].timeUs)
	for _, s := range samples {
		decodeOnly := s.flags&media.FlagDecodeOnly != 0
		require.Equal(t, s.timeUs < 2_500_000, decodeOnly, "sample at %d", s.timeUs)
	}
}

func TestDisabledTracksAreSkipped(t *testing.T) {
	writeClip(t, 2)
	f := newFixture(t, clipPath, 1024, 1<<20)
	f.prepare(t)
	f.reader.Enable(1, 0)

	_, text := drain(t, f.reader, 1)
	require.Len(t, text, 2)
	require.Zero(t, f.allocator.TotalBytesAllocated())

	f.reader.Disable(1)
	f.reader.Enable(0, 1_000_000)
	_, audio := drain(t, f.reader, 0)
	require.Len(t, audio, fixtureSamplesPerFrag)
	require.Equal(t, int64(1_000_000), audio[0].timeUs)
}

func TestRemote(t *testing.T) {
	clip := buildClip(t, 2)
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/clip.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(clip)
	}))
	t.Cleanup(server.Close)

	t.Run("plays", func(t *testing.T) {
		f := newFixture(t, server.URL+"/clip.mp4", 1024, 1<<20)
		f.prepare(t)
		f.reader.Enable(0, 0)
		_, audio := drain(t, f.reader, 0)
		require.Len(t, audio, 2*fixtureSamplesPerFrag)
	})

	t.Run("surfaces errors after retrying", func(t *testing.T) {
		requests.Store(0)
		f := newFixture(t, server.URL+"/missing.mp4", 1024, 1<<20)

		var err error
		require.Eventually(t, func() bool {
			_, err = f.reader.Prepare(0)
			return err != nil
		}, 5*time.Second, time.Millisecond)
		require.ErrorContains(t, err, "404")
		require.Equal(t, int32(2), requests.Load())
		require.Equal(t, err, f.reader.MaybeThrowError())
	})
}

func TestRelease(t *testing.T) {
	writeClip(t, 2)
	f := newFixture(t, clipPath, 1024, 1<<20)
	second := f.source.Register()
	f.prepare(t)
	f.reader.Enable(0, 0)

	require.Eventually(t, func() bool {
		return f.allocator.TotalBytesAllocated() > 0
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, 1<<20, f.control.TargetBufferSize())

	second.Release()
	require.Equal(t, 1<<20, f.control.TargetBufferSize())

	f.reader.Release()
	require.Zero(t, f.allocator.TotalBytesAllocated())
	require.Zero(t, f.control.TargetBufferSize())

	// prepares again from the parsed file
	f.reader = f.source.Register()
	ok, err := f.reader.Prepare(0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMissingLocalFile(t *testing.T) {
	f := newFixture(t, "/media/missing.mp4", 1024, 1<<20)

	require.Eventually(t, func() bool {
		_, err := f.reader.Prepare(0)
		return err != nil
	}, 5*time.Second, time.Millisecond)
	require.Error(t, f.reader.MaybeThrowError())
}
