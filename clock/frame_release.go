package clock

import "time"

// FrameReleaseOptions tunes a FrameReleaseHelper. The defaults suit a 60Hz display.
type FrameReleaseOptions struct {
	// MinFramesForAdjustment is the number of frames observed after a sync before release times
	// are projected from the averaged frame duration.
	MinFramesForAdjustment int

	// MaxAllowedDrift is the divergence between presentation and release time that forces a resync.
	MaxAllowedDrift time.Duration

	// VsyncOffsetPercent is how far before the targeted vsync pulse, in percent of one vsync period,
	// a frame is released.
	VsyncOffsetPercent int

	// RefreshRate of the display in Hz.
	RefreshRate float64

	// Sampler supplies vsync pulses. Nil disables snapping.
	Sampler VsyncSampler
}

// DefaultFrameReleaseOptions returns options without vsync snapping.
func DefaultFrameReleaseOptions() FrameReleaseOptions {
	return FrameReleaseOptions{
		MinFramesForAdjustment: 6,
		MaxAllowedDrift:        20 * time.Millisecond,
		VsyncOffsetPercent:     80,
		RefreshRate:            60,
	}
}

// FrameReleaseHelper smooths video frame release times. It maintains a linear mapping from presentation
// time to release time that is resynchronized whenever the two drift apart, and optionally snaps the
// result to the display's vsync pulses.
type FrameReleaseHelper struct {
	opts FrameReleaseOptions

	vsyncDurationNs int64
	vsyncOffsetNs   int64

	haveSync                    bool
	syncUnadjustedReleaseTimeNs int64
	syncFramePresentationTimeNs int64
	lastFramePresentationTimeUs int64
	adjustedLastFrameTimeNs     int64
	pendingAdjustedFrameTimeNs  int64
	frameCount                  int64
}

// NewFrameReleaseHelper returns a helper for opts. Zero fields fall back to the defaults.
func NewFrameReleaseHelper(opts FrameReleaseOptions) *FrameReleaseHelper {
	def := DefaultFrameReleaseOptions()
	if opts.MinFramesForAdjustment <= 0 {
		opts.MinFramesForAdjustment = def.MinFramesForAdjustment
	}
	if opts.MaxAllowedDrift <= 0 {
		opts.MaxAllowedDrift = def.MaxAllowedDrift
	}
	if opts.VsyncOffsetPercent <= 0 {
		opts.VsyncOffsetPercent = def.VsyncOffsetPercent
	}
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = def.RefreshRate
	}

	h := &FrameReleaseHelper{opts: opts}
	h.vsyncDurationNs = int64(float64(time.Second) / opts.RefreshRate)
	h.vsyncOffsetNs = h.vsyncDurationNs * int64(opts.VsyncOffsetPercent) / 100
	return h
}

// Enable starts a new sequence of frames.
func (h *FrameReleaseHelper) Enable() {
	h.haveSync = false
	if h.opts.Sampler != nil {
		h.opts.Sampler.AddObserver()
	}
}

// Disable ends the current sequence of frames.
func (h *FrameReleaseHelper) Disable() {
	if h.opts.Sampler != nil {
		h.opts.Sampler.RemoveObserver()
	}
}

// AdjustReleaseTime returns the time, in nanoseconds of the realtime source, at which the frame with
// the given presentation time should be released. unadjustedReleaseTimeNs is the naive deadline
// derived from the playback clock.
func (h *FrameReleaseHelper) AdjustReleaseTime(framePresentationTimeUs, unadjustedReleaseTimeNs int64) int64 {
	framePresentationTimeNs := framePresentationTimeUs * 1000

	adjustedFrameTimeNs := framePresentationTimeNs
	adjustedReleaseTimeNs := unadjustedReleaseTimeNs

	if h.haveSync {
		if framePresentationTimeUs != h.lastFramePresentationTimeUs {
			h.frameCount++
			h.adjustedLastFrameTimeNs = h.pendingAdjustedFrameTimeNs
		}

		if h.frameCount >= int64(h.opts.MinFramesForAdjustment) {
			// The average is finer grained than the frame timestamps, which are often rounded to
			// whole milliseconds.
			averageFrameDurationNs := (framePresentationTimeNs - h.syncFramePresentationTimeNs) / h.frameCount
			candidateAdjustedFrameTimeNs := h.adjustedLastFrameTimeNs + averageFrameDurationNs

			if h.isDriftTooLarge(candidateAdjustedFrameTimeNs, unadjustedReleaseTimeNs) {
				h.haveSync = false
			} else {
				adjustedFrameTimeNs = candidateAdjustedFrameTimeNs
				adjustedReleaseTimeNs = h.syncUnadjustedReleaseTimeNs + adjustedFrameTimeNs - h.syncFramePresentationTimeNs
			}
		} else if h.isDriftTooLarge(framePresentationTimeNs, unadjustedReleaseTimeNs) {
			h.haveSync = false
		}
	}

	if !h.haveSync {
		h.syncFramePresentationTimeNs = framePresentationTimeNs
		h.syncUnadjustedReleaseTimeNs = unadjustedReleaseTimeNs
		h.frameCount = 0
		h.haveSync = true
	}

	h.lastFramePresentationTimeUs = framePresentationTimeUs
	h.pendingAdjustedFrameTimeNs = adjustedFrameTimeNs

	if h.opts.Sampler == nil {
		return adjustedReleaseTimeNs
	}
	sampledVsyncTimeNs := h.opts.Sampler.SampledVsyncTimeNs()
	if sampledVsyncTimeNs == 0 {
		return adjustedReleaseTimeNs
	}

	snappedTimeNs := closestVsync(adjustedReleaseTimeNs, sampledVsyncTimeNs, h.vsyncDurationNs)
	return snappedTimeNs - h.vsyncOffsetNs
}

// Synced reports whether the helper currently holds a presentation to release time mapping.
func (h *FrameReleaseHelper) Synced() bool {
	return h.haveSync
}

func (h *FrameReleaseHelper) isDriftTooLarge(frameTimeNs, releaseTimeNs int64) bool {
	elapsedFrameTimeNs := frameTimeNs - h.syncFramePresentationTimeNs
	elapsedReleaseTimeNs := releaseTimeNs - h.syncUnadjustedReleaseTimeNs
	drift := elapsedReleaseTimeNs - elapsedFrameTimeNs
	if drift < 0 {
		drift = -drift
	}
	return drift > h.opts.MaxAllowedDrift.Nanoseconds()
}

func closestVsync(releaseTimeNs, sampledVsyncTimeNs, vsyncDurationNs int64) int64 {
	vsyncCount := (releaseTimeNs - sampledVsyncTimeNs) / vsyncDurationNs
	snappedTimeNs := sampledVsyncTimeNs + vsyncDurationNs*vsyncCount

	var before, after int64
	if releaseTimeNs <= snappedTimeNs {
		before = snappedTimeNs - vsyncDurationNs
		after = snappedTimeNs
	} else {
		before = snappedTimeNs
		after = snappedTimeNs + vsyncDurationNs
	}

	if after-releaseTimeNs < releaseTimeNs-before {
		return after
	}
	return before
}
