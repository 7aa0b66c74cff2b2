// Package sink provides the reference outputs the renderers play into: a realtime-paced audio sink, a
// video surface and a text output.
package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
)

// A buffer whose timestamp is further than this from the expected one is a position discontinuity.
const maxStartMediaTimeDriftUs = 200_000

var (
	ErrNotConfigured       = errors.New("audio sink not configured")
	ErrUnsupportedEncoding = errors.New("unsupported pcm encoding")
)

// AudioOptions configure an Audio sink.
type AudioOptions struct {
	Clock clock.Source
	// BufferDuration is the amount of audio held ahead of the playback head.
	BufferDuration time.Duration
	// Output receives the PCM as it is written, after volume scaling. Nil discards it.
	Output io.Writer
}

// Audio is an AudioSink that plays 16-bit PCM in real time against its clock. It stands in for an
// audio device: the playback head advances with the clock while playing and stalls when the buffer
// runs dry.
type Audio struct {
	opts AudioOptions

	format        *media.Format
	bytesPerFrame int
	sampleRate    int
	bufferFrames  int64

	initialized bool
	playing     bool
	volume      float32

	submittedFrames  int64
	anchorFrames     int64
	anchorAt         time.Duration
	startMediaTimeUs int64
	startMediaTimeOK bool
	resyncPending    bool
}

// NewAudio returns an unconfigured sink.
func NewAudio(opts AudioOptions) *Audio {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	if opts.BufferDuration <= 0 {
		opts.BufferDuration = 250 * time.Millisecond
	}
	return &Audio{opts: opts, volume: 1}
}

func (a *Audio) Configure(format *media.Format) error {
	if format.MimeType != media.MimeAudioRaw {
		return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format.MimeType)
	}
	if format.ChannelCount <= 0 || format.SampleRate <= 0 {
		return fmt.Errorf("%w: %d channels at %dHz", ErrUnsupportedEncoding, format.ChannelCount, format.SampleRate)
	}
	if a.format != nil && a.format.ChannelCount == format.ChannelCount && a.format.SampleRate == format.SampleRate {
		return nil
	}

	a.Reset()
	a.format = format
	a.sampleRate = format.SampleRate
	a.bytesPerFrame = format.ChannelCount * 2
	a.bufferFrames = int64(a.opts.BufferDuration.Seconds() * float64(a.sampleRate))
	return nil
}

func (a *Audio) IsInitialized() bool {
	return a.initialized
}

func (a *Audio) Initialize() error {
	if a.format == nil {
		return ErrNotConfigured
	}
	a.initialized = true
	return nil
}

func (a *Audio) Play() {
	if a.playing {
		return
	}
	a.playing = true
	a.anchorAt = a.opts.Clock.Elapsed()
}

func (a *Audio) Pause() {
	if !a.playing {
		return
	}
	a.anchorFrames = a.playedFrames()
	a.playing = false
}

// playedFrames returns the playback head in frames. A head that caught up with the submitted frames
// is re-anchored so it resumes from there once more data arrives.
func (a *Audio) playedFrames() int64 {
	if !a.playing {
		return a.anchorFrames
	}
	now := a.opts.Clock.Elapsed()
	played := a.anchorFrames + int64((now - a.anchorAt).Seconds()*float64(a.sampleRate))
	if played >= a.submittedFrames {
		a.anchorFrames = a.submittedFrames
		a.anchorAt = now
		return a.submittedFrames
	}
	return played
}

func (a *Audio) framesToUs(frames int64) int64 {
	return frames * media.MicrosPerSecond / int64(a.sampleRate)
}

func (a *Audio) HandleBuffer(data []byte, presentationTimeUs int64) (renderer.SinkResult, error) {
	if !a.initialized {
		return 0, ErrNotConfigured
	}

	var result renderer.SinkResult
	expectedUs := a.startMediaTimeUs + a.framesToUs(a.submittedFrames)
	switch {
	case !a.startMediaTimeOK:
		a.startMediaTimeUs = max(0, presentationTimeUs-a.framesToUs(a.submittedFrames))
		a.startMediaTimeOK = true
	case a.resyncPending || abs(expectedUs-presentationTimeUs) > maxStartMediaTimeDriftUs:
		a.startMediaTimeUs += presentationTimeUs - expectedUs
		a.resyncPending = false
		result |= renderer.SinkPositionDiscontinuity
	}

	frames := int64(len(data) / a.bytesPerFrame)
	pending := a.submittedFrames - a.playedFrames()
	if pending > 0 && pending+frames > a.bufferFrames {
		return result, nil
	}

	if a.opts.Output != nil {
		if _, err := a.opts.Output.Write(a.scale(data)); err != nil {
			return result, err
		}
	}
	a.submittedFrames += frames
	return result | renderer.SinkBufferConsumed, nil
}

// scale applies the volume to 16-bit little endian samples.
func (a *Audio) scale(data []byte) []byte {
	if a.volume == 1 {
		return data
	}
	out := make([]byte, len(data))
	for i := 0; i+1 < len(data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(data[i:]))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(float32(v)*a.volume)))
	}
	return out
}

func (a *Audio) HandleDiscontinuity() {
	if a.startMediaTimeOK {
		a.resyncPending = true
	}
}

// HandleEndOfStream needs no action: everything written is played out by the clock.
func (a *Audio) HandleEndOfStream() {}

func (a *Audio) HasPendingData() bool {
	return a.initialized && a.submittedFrames > a.playedFrames()
}

func (a *Audio) CurrentPositionUs(bool) int64 {
	if !a.initialized || !a.startMediaTimeOK {
		return media.UnknownTimeUs
	}
	return a.startMediaTimeUs + a.framesToUs(a.playedFrames())
}

func (a *Audio) BufferSize() int {
	return int(a.bufferFrames) * a.bytesPerFrame
}

func (a *Audio) BufferSizeUs() int64 {
	if a.sampleRate == 0 {
		return 0
	}
	return a.framesToUs(a.bufferFrames)
}

func (a *Audio) SetVolume(volume float32) {
	a.volume = min(max(volume, 0), 1)
}

// Volume returns the current gain.
func (a *Audio) Volume() float32 {
	return a.volume
}

func (a *Audio) Reset() {
	a.initialized = false
	a.playing = false
	a.submittedFrames = 0
	a.anchorFrames = 0
	a.startMediaTimeOK = false
	a.resyncPending = false
}

func (a *Audio) Release() {
	a.Reset()
	a.format = nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ renderer.AudioSink = (*Audio)(nil)
