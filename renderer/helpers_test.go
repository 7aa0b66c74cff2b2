package renderer

import (
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

const frameDurationUs = 40_000

type recordingSurface struct {
	frames []int64
}

func (s *recordingSurface) RenderFrame(_ []byte, presentationTimeUs, _ int64) {
	s.frames = append(s.frames, presentationTimeUs)
}

type textRecorder struct {
	cues   []string
	clears int
}

func (r *textRecorder) OnCues(cues []Cue) {
	if cues == nil {
		r.clears++
		return
	}
	for _, c := range cues {
		r.cues = append(r.cues, c.Text)
	}
}

type fakeSink struct {
	format      *media.Format
	initialized bool
	playing     bool
	written     [][]byte
	positionUs  int64
	pending     bool
	reject      bool
	volume      float32
	resets      int
	ended       bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{positionUs: media.UnknownTimeUs, volume: 1}
}

func (s *fakeSink) Configure(format *media.Format) error {
	s.format = format
	return nil
}

func (s *fakeSink) IsInitialized() bool { return s.initialized }

func (s *fakeSink) Initialize() error {
	s.initialized = true
	return nil
}

func (s *fakeSink) Play() { s.playing = true }
func (s *fakeSink) Pause() { s.playing = false }

func (s *fakeSink) HandleBuffer(data []byte, _ int64) (SinkResult, error) {
	if s.reject {
		return 0, nil
	}
	s.written = append(s.written, append([]byte(nil), data...))
	return SinkBufferConsumed, nil
}

func (s *fakeSink) HandleDiscontinuity() {}
func (s *fakeSink) HandleEndOfStream() { s.ended = true }
func (s *fakeSink) HasPendingData() bool { return s.pending }
func (s *fakeSink) CurrentPositionUs(bool) int64 { return s.positionUs }
func (s *fakeSink) BufferSize() int { return 4096 }
func (s *fakeSink) BufferSizeUs() int64 { return 20_000 }
func (s *fakeSink) SetVolume(volume float32) { s.volume = volume }
func (s *fakeSink) Reset() {
	s.resets++
	s.initialized = false
}

func (s *fakeSink) Release() { s.initialized = false }

// videoTrack returns count raw frames of the given size with a sync frame every syncEvery frames.
func videoTrack(count, syncEvery, width, height int) source.Track {
	samples := make([]source.Sample, count)
	for i := range samples {
		var flags media.SampleFlags
		if i%syncEvery == 0 {
			flags = media.FlagSync
		}
		samples[i] = source.Sample{TimeUs: int64(i) * frameDurationUs, Flags: flags, Data: []byte{byte(i)}}
	}
	return source.Track{
		Format:  media.NewVideoFormat("v", media.MimeVideoRaw, media.NoValue, 16, int64(count)*frameDurationUs, width, height, nil),
		Samples: samples,
	}
}

// audioTrack returns count raw chunks of 20ms.
func audioTrack(count int) source.Track {
	samples := make([]source.Sample, count)
	for i := range samples {
		samples[i] = source.Sample{TimeUs: int64(i) * 20_000, Flags: media.FlagSync, Data: []byte{byte(i), byte(i)}}
	}
	return source.Track{
		Format:  media.NewAudioFormat("a", media.MimeAudioRaw, media.NoValue, 16, int64(count)*20_000, 1, 48000, nil, "en"),
		Samples: samples,
	}
}

func decoderOptions(src clock.Source) DecoderOptions {
	registry := codec.NewRegistry()
	return DecoderOptions{Selector: registry, Factory: registry, Clock: src}
}

// work runs n work cycles at a fixed position.
func work(r Renderer, src clock.Source, positionUs int64, n int) error {
	for range n {
		if err := r.DoSomeWork(positionUs, clock.ElapsedRealtimeUs(src)); err != nil {
			return err
		}
	}
	return nil
}

// play advances src and the position together in steps of step until endUs.
func play(r Renderer, src *clock.ManualSource, startUs, endUs int64, step time.Duration) error {
	for positionUs := startUs; positionUs <= endUs; positionUs += step.Microseconds() {
		if err := r.DoSomeWork(positionUs, clock.ElapsedRealtimeUs(src)); err != nil {
			return err
		}
		src.Advance(step)
	}
	return nil
}
