package renderer

import (
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

// SinkResult reports what AudioSink.HandleBuffer did with a buffer.
type SinkResult int

const (
	// SinkPositionDiscontinuity means the buffer did not continue the previous one.
	SinkPositionDiscontinuity SinkResult = 1 << iota
	// SinkBufferConsumed means the whole buffer was written.
	SinkBufferConsumed
)

// AudioSink plays decoded PCM and reports the playback head.
type AudioSink interface {
	// Configure sets the PCM format. The sink is reinitialized when the format changed.
	Configure(format *media.Format) error
	IsInitialized() bool
	Initialize() error
	Play()
	Pause()

	// HandleBuffer writes a buffer starting at presentationTimeUs. Buffers that are not consumed must be
	// offered again.
	HandleBuffer(data []byte, presentationTimeUs int64) (SinkResult, error)
	// HandleDiscontinuity tells the sink the next buffer does not continue the last one.
	HandleDiscontinuity()
	// HandleEndOfStream lets the sink play out everything written.
	HandleEndOfStream()
	HasPendingData() bool

	// CurrentPositionUs returns the playback head, or media.UnknownTimeUs before the first buffer.
	CurrentPositionUs(sourceEnded bool) int64
	BufferSize() int
	BufferSizeUs() int64

	SetVolume(volume float32)
	Reset()
	Release()
}

// Audio renders audio through an AudioSink and acts as the media clock while enabled.
type Audio struct {
	base
	sourceTrack

	loop *decodeLoop
	sink AudioSink

	currentPositionUs          int64
	allowPositionDiscontinuity bool
	sinkHasData                bool
	lastFeed                   time.Duration
}

// NewAudio returns an audio renderer reading from sources.
func NewAudio(sink AudioSink, opts DecoderOptions, sources ...source.SampleSource) *Audio {
	a := &Audio{sink: sink}
	a.base = base{kind: KindAudio, hooks: a}
	a.sourceTrack = newSourceTrack(a.handlesFormat, sources...)
	a.loop = newDecodeLoop(opts, &a.sourceTrack, a.State, a)
	return a
}

func (a *Audio) handlesFormat(format *media.Format) (bool, error) {
	if !media.IsAudio(format.MimeType) {
		return false, nil
	}
	return a.loop.handles(format.MimeType)
}

// Counters returns the decoder counters published last.
func (a *Audio) Counters() Counters {
	return a.loop.counters.Snapshot()
}

func (a *Audio) MediaClock() clock.MediaClock {
	return a
}

// PositionUs returns the sink's playback head. It never moves backwards except across a
// discontinuity.
func (a *Audio) PositionUs() int64 {
	positionUs := a.sink.CurrentPositionUs(a.IsEnded())
	if positionUs != media.UnknownTimeUs {
		if a.allowPositionDiscontinuity {
			a.currentPositionUs = positionUs
		} else {
			a.currentPositionUs = max(a.currentPositionUs, positionUs)
		}
		a.allowPositionDiscontinuity = false
	}
	return a.currentPositionUs
}

func (a *Audio) doPrepare(positionUs int64) (bool, error) {
	return a.prepareSources(positionUs)
}

func (a *Audio) onEnabled(track int, positionUs int64, _ bool) error {
	a.enableTrack(track, positionUs)
	return a.onDiscontinuity(positionUs)
}

func (a *Audio) onStarted() error {
	a.sink.Play()
	return nil
}

func (a *Audio) onStopped() error {
	a.sink.Pause()
	return nil
}

func (a *Audio) onDisabled() error {
	a.sink.Release()
	err := a.loop.onDisabled()
	a.disableTrack()
	return err
}

func (a *Audio) onReleased() error {
	a.releaseSources()
	return nil
}

func (a *Audio) onDiscontinuity(positionUs int64) error {
	a.sink.Reset()
	a.currentPositionUs = positionUs
	a.allowPositionDiscontinuity = true
	return a.loop.onDiscontinuity()
}

func (a *Audio) DoSomeWork(positionUs, elapsedRealtimeUs int64) error {
	positionUs, ready, err := a.sync(positionUs, a.onDiscontinuity)
	if err != nil {
		return err
	}
	return a.loop.doSomeWork(positionUs, elapsedRealtimeUs, ready)
}

func (a *Audio) SeekTo(positionUs int64) error {
	return a.seek(positionUs, a.onDiscontinuity)
}

func (a *Audio) IsReady() bool {
	return a.sink.HasPendingData() || a.loop.isReady()
}

func (a *Audio) IsEnded() bool {
	return a.loop.isEnded() && !a.sink.HasPendingData()
}

func (a *Audio) HandleMessage(msgType int, payload any) error {
	if msgType != MsgSetVolume {
		return nil
	}
	volume, err := volumePayload(payload)
	if err != nil {
		return err
	}
	a.sink.SetVolume(volume)
	return nil
}

func (a *Audio) shouldInitDecoder() bool {
	return true
}

func (a *Audio) configureDecoder(session codec.Session, format *media.Format, crypto codec.Crypto) error {
	return session.Configure(format, nil, crypto)
}

// canReconfigure is false: audio decoders are always recreated on a format change.
func (a *Audio) canReconfigure(bool, *media.Format, *media.Format) bool {
	return false
}

func (a *Audio) onInputFormatChanged(*media.Format) {}

func (a *Audio) onOutputFormatChanged(format *media.Format) error {
	if err := a.sink.Configure(format); err != nil {
		return &SinkError{Op: "configure", Err: err}
	}
	return nil
}

func (a *Audio) onOutputStreamEnded() {
	a.sink.HandleEndOfStream()
}

func (a *Audio) processOutputBuffer(_, _ int64, data []byte, info *codec.BufferInfo, index int, shouldSkip bool) (bool, error) {
	session := a.loop.session
	counters := &a.loop.counters

	if shouldSkip {
		if err := session.ReleaseOutputBuffer(index, false, 0); err != nil {
			return false, err
		}
		counters.SkippedOutputBufferCount++
		a.sink.HandleDiscontinuity()
		return true, nil
	}

	if !a.sink.IsInitialized() {
		if err := a.sink.Initialize(); err != nil {
			sinkErr := &SinkError{Op: "initialize", Err: err}
			a.loop.opts.Listener.audioSinkError(sinkErr)
			return false, sinkErr
		}
		if a.State() == StateStarted {
			a.sink.Play()
		}
	} else {
		hadData := a.sinkHasData
		a.sinkHasData = a.sink.HasPendingData()
		if hadData && !a.sinkHasData && a.State() == StateStarted {
			elapsed := a.loop.opts.Clock.Elapsed() - a.lastFeed
			a.loop.opts.Listener.audioUnderrun(a.sink.BufferSize(), a.sink.BufferSizeUs()/1000, elapsed)
		}
	}

	result, err := a.sink.HandleBuffer(data, info.PresentationTimeUs)
	if err != nil {
		sinkErr := &SinkError{Op: "write", Err: err}
		a.loop.opts.Listener.audioSinkError(sinkErr)
		return false, sinkErr
	}
	a.lastFeed = a.loop.opts.Clock.Elapsed()

	if result&SinkPositionDiscontinuity != 0 {
		a.allowPositionDiscontinuity = true
	}
	if result&SinkBufferConsumed == 0 {
		return false, nil
	}

	if err := session.ReleaseOutputBuffer(index, false, 0); err != nil {
		return false, err
	}
	counters.RenderedOutputBufferCount++
	return true, nil
}
