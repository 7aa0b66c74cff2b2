package renderer

import (
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

// Frame release windows relative to the adjusted release time.
const (
	lateFrameThresholdUs  = -30_000
	earlyFrameThresholdUs = 50_000
)

// VideoOptions configure a Video renderer.
type VideoOptions struct {
	DecoderOptions

	// AllowedJoiningTime keeps a joining renderer ready while its first frame is decoded.
	AllowedJoiningTime time.Duration
	// MaxDroppedFramesToNotify triggers OnDroppedFrames when this many frames were dropped. Zero
	// notifies on stop only.
	MaxDroppedFramesToNotify int
	FrameRelease             clock.FrameReleaseOptions
	// Surface receives the rendered frames. It can be replaced with MsgSetSurface.
	Surface codec.Surface
}

// Video renders video frames to a codec.Surface, releasing each frame in step with the display.
type Video struct {
	base
	sourceTrack

	loop            *decodeLoop
	opts            VideoOptions
	frameRelease    *clock.FrameReleaseHelper
	surface         codec.Surface
	reportedDrawn   bool
	renderedFirst   bool
	joiningDeadline time.Duration

	droppedFrames         int
	consecutiveDropped    int
	droppedAccumulationAt time.Duration

	pendingRotation   int
	pendingPixelRatio float32
	width             int
	height            int
	pixelRatio        float32
	reportedWidth     int
	reportedHeight    int
	reportedRatio     float32
}

// NewVideo returns a video renderer reading from sources.
func NewVideo(opts VideoOptions, sources ...source.SampleSource) *Video {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	v := &Video{
		opts:            opts,
		frameRelease:    clock.NewFrameReleaseHelper(opts.FrameRelease),
		surface:         opts.Surface,
		joiningDeadline: -1,
		width:           media.NoValue,
		height:          media.NoValue,
		pixelRatio:      media.NoValue,
		reportedWidth:   media.NoValue,
		reportedHeight:  media.NoValue,
		reportedRatio:   media.NoValue,
	}
	v.base = base{kind: KindVideo, hooks: v}
	v.sourceTrack = newSourceTrack(v.handlesFormat, sources...)
	v.loop = newDecodeLoop(opts.DecoderOptions, &v.sourceTrack, v.State, v)
	return v
}

func (v *Video) handlesFormat(format *media.Format) (bool, error) {
	if !media.IsVideo(format.MimeType) {
		return false, nil
	}
	return v.loop.handles(format.MimeType)
}

// Counters returns the decoder counters published last.
func (v *Video) Counters() Counters {
	return v.loop.counters.Snapshot()
}

func (v *Video) MediaClock() clock.MediaClock {
	return nil
}

func (v *Video) now() time.Duration {
	return v.opts.Clock.Elapsed()
}

func (v *Video) doPrepare(positionUs int64) (bool, error) {
	return v.prepareSources(positionUs)
}

func (v *Video) onEnabled(track int, positionUs int64, joining bool) error {
	v.enableTrack(track, positionUs)
	if err := v.onDiscontinuity(positionUs); err != nil {
		return err
	}
	if joining && v.opts.AllowedJoiningTime > 0 {
		v.joiningDeadline = v.now() + v.opts.AllowedJoiningTime
	}
	v.frameRelease.Enable()
	return nil
}

func (v *Video) onStarted() error {
	v.droppedFrames = 0
	v.droppedAccumulationAt = v.now()
	return nil
}

func (v *Video) onStopped() error {
	v.joiningDeadline = -1
	v.notifyDroppedFrames()
	return nil
}

func (v *Video) onDisabled() error {
	v.width = media.NoValue
	v.height = media.NoValue
	v.pixelRatio = media.NoValue
	v.reportedWidth = media.NoValue
	v.reportedHeight = media.NoValue
	v.reportedRatio = media.NoValue
	v.frameRelease.Disable()
	err := v.loop.onDisabled()
	v.disableTrack()
	return err
}

func (v *Video) onReleased() error {
	v.releaseSources()
	return nil
}

func (v *Video) onDiscontinuity(int64) error {
	v.renderedFirst = false
	v.consecutiveDropped = 0
	v.joiningDeadline = -1
	return v.loop.onDiscontinuity()
}

func (v *Video) DoSomeWork(positionUs, elapsedRealtimeUs int64) error {
	positionUs, ready, err := v.sync(positionUs, v.onDiscontinuity)
	if err != nil {
		return err
	}
	return v.loop.doSomeWork(positionUs, elapsedRealtimeUs, ready)
}

func (v *Video) SeekTo(positionUs int64) error {
	return v.seek(positionUs, v.onDiscontinuity)
}

// IsReady holds a joining renderer ready until its first frame renders or the joining deadline passes.
func (v *Video) IsReady() bool {
	if v.loop.isReady() && (v.renderedFirst || !v.loop.decoderInitialized() || v.loop.sourceState == sourceReadyReadMayFail) {
		v.joiningDeadline = -1
		return true
	}
	if v.joiningDeadline < 0 {
		return false
	}
	if v.now() < v.joiningDeadline {
		return true
	}
	v.joiningDeadline = -1
	return false
}

func (v *Video) IsEnded() bool {
	return v.loop.isEnded()
}

func (v *Video) HandleMessage(msgType int, payload any) error {
	if msgType != MsgSetSurface {
		return nil
	}
	surface, err := surfacePayload(payload)
	if err != nil {
		return err
	}
	return v.setSurface(surface)
}

func (v *Video) setSurface(surface codec.Surface) error {
	if v.surface == surface {
		return nil
	}
	v.surface = surface
	v.reportedDrawn = false

	if state := v.State(); state == StateEnabled || state == StateStarted {
		if err := v.loop.releaseDecoder(); err != nil {
			return err
		}
		return v.loop.maybeInitDecoder()
	}
	return nil
}

func (v *Video) shouldInitDecoder() bool {
	return v.surface != nil
}

func (v *Video) configureDecoder(session codec.Session, format *media.Format, crypto codec.Crypto) error {
	return session.Configure(format, v.surface, crypto)
}

func (v *Video) canReconfigure(adaptive bool, oldFormat, newFormat *media.Format) bool {
	return newFormat.MimeType == oldFormat.MimeType &&
		(adaptive || (oldFormat.Width == newFormat.Width && oldFormat.Height == newFormat.Height))
}

func (v *Video) onInputFormatChanged(format *media.Format) {
	v.pendingPixelRatio = format.PixelWidthHeightRatio
	if v.pendingPixelRatio == media.NoValue {
		v.pendingPixelRatio = 1
	}
	v.pendingRotation = max(format.RotationDegrees, 0)
}

func (v *Video) onOutputFormatChanged(format *media.Format) error {
	v.width = format.Width
	v.height = format.Height
	v.pixelRatio = v.pendingPixelRatio
	if v.pendingRotation == 90 || v.pendingRotation == 270 {
		v.width, v.height = v.height, v.width
		v.pixelRatio = 1 / v.pixelRatio
	}
	return nil
}

func (v *Video) onOutputStreamEnded() {}

func (v *Video) processOutputBuffer(positionUs, elapsedRealtimeUs int64, _ []byte, info *codec.BufferInfo, index int, shouldSkip bool) (bool, error) {
	if shouldSkip {
		if err := v.loop.session.ReleaseOutputBuffer(index, false, 0); err != nil {
			return false, err
		}
		v.loop.counters.SkippedOutputBufferCount++
		v.consecutiveDropped = 0
		return true, nil
	}

	systemTimeNs := clock.NanoTime(v.opts.Clock)
	if !v.renderedFirst {
		// The first frame after a discontinuity is shown immediately.
		return true, v.render(index, systemTimeNs)
	}

	if v.State() != StateStarted {
		return false, nil
	}

	elapsedSinceStartOfLoopUs := clock.ElapsedRealtimeUs(v.opts.Clock) - elapsedRealtimeUs
	earlyUs := info.PresentationTimeUs - positionUs - elapsedSinceStartOfLoopUs

	unadjustedReleaseTimeNs := systemTimeNs + earlyUs*1000
	adjustedReleaseTimeNs := v.frameRelease.AdjustReleaseTime(info.PresentationTimeUs, unadjustedReleaseTimeNs)
	earlyUs = (adjustedReleaseTimeNs - systemTimeNs) / 1000

	switch {
	case earlyUs < lateFrameThresholdUs:
		return true, v.drop(index)
	case earlyUs < earlyFrameThresholdUs:
		return true, v.render(index, adjustedReleaseTimeNs)
	default:
		// Too early: offer the buffer again on the next work cycle.
		return false, nil
	}
}

func (v *Video) render(index int, releaseTimeNs int64) error {
	v.notifyVideoSizeChanged()
	if err := v.loop.session.ReleaseOutputBuffer(index, true, releaseTimeNs); err != nil {
		return err
	}
	v.loop.counters.RenderedOutputBufferCount++
	v.renderedFirst = true
	v.consecutiveDropped = 0
	if !v.reportedDrawn {
		v.reportedDrawn = true
		v.loop.opts.Listener.drawnToSurface(v.surface)
	}
	return nil
}

func (v *Video) drop(index int) error {
	if err := v.loop.session.ReleaseOutputBuffer(index, false, 0); err != nil {
		return err
	}
	counters := &v.loop.counters
	counters.DroppedOutputBufferCount++
	v.droppedFrames++
	v.consecutiveDropped++
	counters.MaxConsecutiveDroppedOutputBufferCount = max(counters.MaxConsecutiveDroppedOutputBufferCount, v.consecutiveDropped)
	if v.droppedFrames == v.opts.MaxDroppedFramesToNotify {
		v.notifyDroppedFrames()
	}
	return nil
}

func (v *Video) notifyVideoSizeChanged() {
	if v.reportedWidth == v.width && v.reportedHeight == v.height && v.reportedRatio == v.pixelRatio {
		return
	}
	v.loop.opts.Listener.videoSizeChanged(v.width, v.height, v.pendingRotation, v.pixelRatio)
	v.reportedWidth = v.width
	v.reportedHeight = v.height
	v.reportedRatio = v.pixelRatio
}

func (v *Video) notifyDroppedFrames() {
	if v.droppedFrames == 0 {
		return
	}
	now := v.now()
	v.loop.opts.Listener.droppedFrames(v.droppedFrames, now-v.droppedAccumulationAt)
	v.droppedFrames = 0
	v.droppedAccumulationAt = now
}
