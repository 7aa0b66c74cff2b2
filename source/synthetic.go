package source

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/anisan-cli/reelplay/media"
)

// SyntheticOptions describes generated test media.
type SyntheticOptions struct {
	Duration time.Duration

	// FrameRate of the raw video track. Zero omits video.
	FrameRate int
	Width     int
	Height    int

	// AudioSampleRate of the raw PCM track. Zero omits audio.
	AudioSampleRate int
	AudioChannels   int
	ToneHz          float64

	// CueInterval spaces the text cues. Zero omits text.
	CueInterval time.Duration
}

// DefaultSyntheticOptions returns ten seconds of 24fps video, a 440Hz stereo tone and a cue per second.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Duration:        10 * time.Second,
		FrameRate:       24,
		Width:           320,
		Height:          240,
		AudioSampleRate: 48000,
		AudioChannels:   2,
		ToneHz:          440,
		CueInterval:     time.Second,
	}
}

const syntheticAudioChunk = 20 * time.Millisecond

// NewSynthetic returns a Memory source with generated raw media.
func NewSynthetic(opts SyntheticOptions) *Memory {
	durationUs := opts.Duration.Microseconds()
	var tracks []Track

	if opts.FrameRate > 0 {
		tracks = append(tracks, syntheticVideo(opts, durationUs))
	}
	if opts.AudioSampleRate > 0 {
		tracks = append(tracks, syntheticAudio(opts, durationUs))
	}
	if opts.CueInterval > 0 {
		tracks = append(tracks, syntheticText(opts, durationUs))
	}

	return NewMemory(tracks...)
}

func syntheticVideo(opts SyntheticOptions, durationUs int64) Track {
	frameCount := int(durationUs * int64(opts.FrameRate) / media.MicrosPerSecond)
	samples := make([]Sample, 0, frameCount)

	for i := range frameCount {
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(i))

		var flags media.SampleFlags
		if i%opts.FrameRate == 0 {
			flags = media.FlagSync
		}

		samples = append(samples, Sample{
			TimeUs: int64(i) * media.MicrosPerSecond / int64(opts.FrameRate),
			Flags:  flags,
			Data:   data,
		})
	}

	return Track{
		Format:  media.NewVideoFormat("video", media.MimeVideoRaw, media.NoValue, 64, durationUs, opts.Width, opts.Height, nil),
		Samples: samples,
	}
}

func syntheticAudio(opts SyntheticOptions, durationUs int64) Track {
	channels := max(opts.AudioChannels, 1)
	framesPerChunk := int(int64(opts.AudioSampleRate) * syntheticAudioChunk.Microseconds() / media.MicrosPerSecond)
	chunkBytes := framesPerChunk * channels * 2

	var samples []Sample
	frame := 0
	for timeUs := int64(0); timeUs < durationUs; timeUs += syntheticAudioChunk.Microseconds() {
		data := make([]byte, chunkBytes)
		for i := range framesPerChunk {
			v := int16(math.Sin(2*math.Pi*opts.ToneHz*float64(frame)/float64(opts.AudioSampleRate)) * math.MaxInt16 / 4)
			for c := range channels {
				binary.LittleEndian.PutUint16(data[(i*channels+c)*2:], uint16(v))
			}
			frame++
		}

		samples = append(samples, Sample{TimeUs: timeUs, Flags: media.FlagSync, Data: data})
	}

	return Track{
		Format:  media.NewAudioFormat("audio", media.MimeAudioRaw, media.NoValue, chunkBytes, durationUs, channels, opts.AudioSampleRate, nil, "und"),
		Samples: samples,
	}
}

func syntheticText(opts SyntheticOptions, durationUs int64) Track {
	var samples []Sample
	for i, timeUs := 0, int64(0); timeUs < durationUs; i, timeUs = i+1, timeUs+opts.CueInterval.Microseconds() {
		samples = append(samples, Sample{
			TimeUs: timeUs,
			Flags:  media.FlagSync,
			Data:   fmt.Appendf(nil, "cue %d", i+1),
		})
	}

	return Track{
		Format:  media.NewTextFormat("text", media.MimeTextPlain, media.NoValue, durationUs, "und"),
		Samples: samples,
	}
}
