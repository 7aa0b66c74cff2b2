package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
	"github.com/samber/lo"
)

// handle processes one command on the engine goroutine and reports whether the engine was released.
// Any error or panic ends the playback attempt.
func (e *Engine) handle(c command) (released bool) {
	defer func() {
		if r := recover(); r != nil {
			err := &PlaybackError{Err: recovered(r), CaughtAtTopLevel: true}
			if c.done != nil {
				select {
				case c.done <- err:
				default:
				}
			}
			e.fail(err)
		}
	}()

	var err error
	switch c.kind {
	case cmdPrepare:
		err = e.prepareInternal(c.renderers)
	case cmdIncrementalPrepare:
		if c.generation == e.generation {
			err = e.incrementalPrepare()
		}
	case cmdDoSomeWork:
		if c.generation == e.generation {
			err = e.doSomeWork()
		}
	case cmdSetPlayWhenReady:
		err = e.setPlayWhenReadyInternal(c.playWhenReady)
	case cmdSeekTo:
		err = e.seekToInternal(c.positionMs)
	case cmdStop:
		e.stopInternal()
	case cmdRelease:
		e.releaseInternal()
		return true
	case cmdCustom:
		err = e.sendMessageInternal(c)
	case cmdSetSelectedTrack:
		err = e.setSelectedTrackInternal(c.rendererIndex, c.trackIndex)
	}

	if err != nil {
		e.fail(&PlaybackError{Err: err})
	}
	return false
}

// fail reports err and returns to idle.
func (e *Engine) fail(err *PlaybackError) {
	log.Component("engine").WithField("top_level", err.CaughtAtTopLevel).Errorf("playback failed: %v", err.Err)

	e.emit(Event{Type: EventError, Err: err})
	e.stopInternal()
}

func (e *Engine) prepareInternal(renderers []renderer.Renderer) error {
	e.resetInternal()
	e.renderers = renderers
	e.trackFormats = make([][]*media.Format, len(renderers))
	e.setState(StatePreparing)
	return e.incrementalPrepare()
}

func (e *Engine) incrementalPrepare() error {
	operationStart := e.opts.Clock.Elapsed()
	positionUs := e.positionUs.Load()

	prepared := true
	for _, r := range e.renderers {
		if r.State() != renderer.StateUnprepared {
			continue
		}
		ok, err := r.Prepare(positionUs)
		if err != nil {
			return err
		}
		if !ok {
			if err := r.MaybeThrowError(); err != nil {
				return err
			}
			prepared = false
		}
	}
	if !prepared {
		e.scheduleNext(cmdIncrementalPrepare, operationStart, prepareInterval)
		return nil
	}

	durationUs := int64(0)
	allEnded, allReadyOrEnded := true, true
	for i, r := range e.renderers {
		count := r.TrackCount()
		formats := make([]*media.Format, count)
		for track := range count {
			formats[track] = r.Format(track)
		}
		e.trackFormats[i] = formats
		if count == 0 {
			continue
		}

		durationUs = mergeDuration(durationUs, r.DurationUs())
		if track := e.selectedTrack(i); track >= 0 && track < count {
			if err := e.enableRenderer(r, track, false); err != nil {
				return err
			}
			allEnded = allEnded && r.IsEnded()
			allReadyOrEnded = allReadyOrEnded && e.readyOrEnded(r)
		}
	}
	e.durationUs.Store(durationUs)

	switch {
	case allEnded && (durationUs == media.UnknownTimeUs || durationUs <= positionUs):
		e.state = StateEnded
	case allReadyOrEnded:
		e.state = StateReady
	default:
		e.state = StateBuffering
	}

	log.Component("engine").WithFields(map[string]any{
		"state":       e.state.String(),
		"renderers":   len(e.renderers),
		"duration_us": durationUs,
	}).Info("prepared")
	e.emit(Event{Type: EventPrepared, State: e.state, TrackFormats: e.trackFormats})

	if e.playWhenReady && e.state == StateReady {
		if err := e.startRenderers(); err != nil {
			return err
		}
	}
	e.scheduleNow(cmdDoSomeWork)
	return nil
}

// mergeDuration folds a renderer's duration into the media duration: unknown wins, renderers that match
// the longest sibling do not count.
func mergeDuration(durationUs, rendererDurationUs int64) int64 {
	switch {
	case durationUs == media.UnknownTimeUs, rendererDurationUs == media.UnknownTimeUs:
		return media.UnknownTimeUs
	case rendererDurationUs == media.MatchLongestUs:
		return durationUs
	default:
		return max(durationUs, rendererDurationUs)
	}
}

func (e *Engine) enableRenderer(r renderer.Renderer, track int, joining bool) error {
	if err := r.Enable(track, e.positionUs.Load(), joining); err != nil {
		return err
	}
	e.enabledRenderers = append(e.enabledRenderers, r)

	if mc := r.MediaClock(); mc != nil {
		if e.rendererClock != nil {
			return ErrMultipleMediaClocks
		}
		e.rendererClock = mc
		e.rendererClockSource = r
	}
	return nil
}

// readyOrEnded reports whether r counts as ready for the aggregate state. Before playback is ready a
// ready renderer must also have buffered far enough ahead of the position.
func (e *Engine) readyOrEnded(r renderer.Renderer) bool {
	if r.IsEnded() {
		return true
	}
	if !r.IsReady() {
		return false
	}
	if e.state == StateReady {
		return true
	}

	minBufferUs := e.opts.MinBuffer.Microseconds()
	if e.rebuffering {
		minBufferUs = e.opts.MinRebuffer.Microseconds()
	}
	durationUs := r.DurationUs()
	bufferedUs := r.BufferedPositionUs()
	return minBufferUs <= 0 ||
		bufferedUs == media.UnknownTimeUs ||
		bufferedUs == media.EndOfTrackUs ||
		bufferedUs >= e.positionUs.Load()+minBufferUs ||
		fullyBuffered(durationUs, bufferedUs)
}

func fullyBuffered(durationUs, bufferedUs int64) bool {
	return durationUs != media.UnknownTimeUs && durationUs != media.MatchLongestUs && bufferedUs >= durationUs
}

func (e *Engine) doSomeWork() error {
	operationStart := e.opts.Clock.Elapsed()

	durationUs := e.durationUs.Load()
	bufferedPositionUs := int64(math.MaxInt64)
	if durationUs != media.UnknownTimeUs {
		bufferedPositionUs = durationUs
	}

	allEnded, allReadyOrEnded := true, true
	e.updatePosition()
	positionUs := e.positionUs.Load()

	for _, r := range e.enabledRenderers {
		if err := r.DoSomeWork(positionUs, e.elapsedRealtimeUs); err != nil {
			return err
		}
		allEnded = allEnded && r.IsEnded()

		readyOrEnded := e.readyOrEnded(r)
		if !readyOrEnded {
			if err := r.MaybeThrowError(); err != nil {
				return err
			}
		}
		allReadyOrEnded = allReadyOrEnded && readyOrEnded

		if bufferedPositionUs == media.UnknownTimeUs {
			continue
		}
		rendererBufferedUs := r.BufferedPositionUs()
		switch {
		case rendererBufferedUs == media.UnknownTimeUs:
			bufferedPositionUs = media.UnknownTimeUs
		case rendererBufferedUs == media.EndOfTrackUs, fullyBuffered(r.DurationUs(), rendererBufferedUs):
		default:
			bufferedPositionUs = min(bufferedPositionUs, rendererBufferedUs)
		}
	}
	e.bufferedPositionUs.Store(bufferedPositionUs)

	switch {
	case allEnded && (durationUs == media.UnknownTimeUs || durationUs <= positionUs):
		e.setState(StateEnded)
		if err := e.stopRenderers(); err != nil {
			return err
		}
	case e.state == StateBuffering && allReadyOrEnded:
		e.setState(StateReady)
		if e.playWhenReady {
			if err := e.startRenderers(); err != nil {
				return err
			}
		}
	case e.state == StateReady && !allReadyOrEnded:
		e.rebuffering = e.playWhenReady
		e.setState(StateBuffering)
		if err := e.stopRenderers(); err != nil {
			return err
		}
	}

	e.cancelScheduled()
	switch {
	case (e.playWhenReady && e.state == StateReady) || e.state == StateBuffering:
		e.scheduleNext(cmdDoSomeWork, operationStart, renderingInterval)
	case len(e.enabledRenderers) > 0:
		e.scheduleNext(cmdDoSomeWork, operationStart, idleInterval)
	}
	return nil
}

// updatePosition reads the position from the renderer clock while its renderer is enabled and still
// playing, keeping the standalone clock in step so it can take over; otherwise from the standalone clock.
func (e *Engine) updatePosition() {
	var positionUs int64
	if e.rendererClock != nil && lo.Contains(e.enabledRenderers, e.rendererClockSource) && !e.rendererClockSource.IsEnded() {
		positionUs = e.rendererClock.PositionUs()
		e.standaloneClock.SetPositionUs(positionUs)
	} else {
		positionUs = e.standaloneClock.PositionUs()
	}
	e.positionUs.Store(positionUs)
	e.elapsedRealtimeUs = clock.ElapsedRealtimeUs(e.opts.Clock)
}

func (e *Engine) setPlayWhenReadyInternal(playWhenReady bool) error {
	defer e.emit(Event{Type: EventPlayWhenReadyAck})

	e.rebuffering = false
	e.playWhenReady = playWhenReady
	if !playWhenReady {
		if err := e.stopRenderers(); err != nil {
			return err
		}
		e.updatePosition()
		return nil
	}

	switch e.state {
	case StateReady:
		if err := e.startRenderers(); err != nil {
			return err
		}
		e.scheduleNow(cmdDoSomeWork)
	case StateBuffering:
		e.scheduleNow(cmdDoSomeWork)
	}
	return nil
}

func (e *Engine) seekToInternal(positionMs int64) error {
	defer e.pendingSeekCount.Add(-1)

	if positionMs == e.positionUs.Load()/1000 {
		return nil
	}

	positionUs := positionMs * 1000
	e.rebuffering = false
	e.positionUs.Store(positionUs)
	e.standaloneClock.Stop()
	e.standaloneClock.SetPositionUs(positionUs)
	if e.state == StateIdle || e.state == StatePreparing {
		return nil
	}

	log.Component("engine").WithField("position_us", positionUs).Debug("seek")
	for _, r := range e.enabledRenderers {
		if err := ensureStopped(r); err != nil {
			return err
		}
		if err := r.SeekTo(positionUs); err != nil {
			return err
		}
	}
	e.setState(StateBuffering)
	e.scheduleNow(cmdDoSomeWork)
	return nil
}

func (e *Engine) sendMessageInternal(c command) error {
	err := c.target.HandleMessage(c.msgType, c.payload)
	if c.done != nil {
		c.done <- err
	}
	if err != nil {
		return err
	}

	// The message may have made work possible.
	if e.state != StateIdle && e.state != StatePreparing {
		e.scheduleNow(cmdDoSomeWork)
	}
	return nil
}

func (e *Engine) selectedTrack(rendererIndex int) int {
	if track, ok := e.selectedTracks[rendererIndex]; ok {
		return track
	}
	return TrackDefault
}

func (e *Engine) setSelectedTrackInternal(rendererIndex, trackIndex int) error {
	if e.selectedTrack(rendererIndex) == trackIndex {
		return nil
	}
	e.selectedTracks[rendererIndex] = trackIndex
	if e.state == StateIdle || e.state == StatePreparing {
		return nil
	}
	if rendererIndex < 0 || rendererIndex >= len(e.renderers) {
		return fmt.Errorf("select track: no renderer %d", rendererIndex)
	}

	r := e.renderers[rendererIndex]
	state := r.State()
	if state == renderer.StateUnprepared || state == renderer.StateReleased || r.TrackCount() == 0 {
		return nil
	}

	isEnabled := state == renderer.StateEnabled || state == renderer.StateStarted
	shouldEnable := trackIndex >= 0 && trackIndex < len(e.trackFormats[rendererIndex])

	if isEnabled {
		if !shouldEnable && r == e.rendererClockSource {
			// The standalone clock takes over from the renderer being disabled.
			e.standaloneClock.SetPositionUs(e.rendererClock.PositionUs())
		}
		if err := e.ensureDisabled(r); err != nil {
			return err
		}
		e.enabledRenderers = lo.Without(e.enabledRenderers, r)
	}

	if shouldEnable {
		playing := e.playWhenReady && e.state == StateReady
		joining := !isEnabled && playing
		if err := e.enableRenderer(r, trackIndex, joining); err != nil {
			return err
		}
		if playing {
			if err := r.Start(); err != nil {
				return err
			}
		}
		e.scheduleNow(cmdDoSomeWork)
	}
	return nil
}

func (e *Engine) startRenderers() error {
	e.rebuffering = false
	e.standaloneClock.Start()
	for _, r := range e.enabledRenderers {
		if err := r.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stopRenderers() error {
	e.standaloneClock.Stop()
	for _, r := range e.enabledRenderers {
		if err := ensureStopped(r); err != nil {
			return err
		}
	}
	return nil
}

func ensureStopped(r renderer.Renderer) error {
	if r.State() == renderer.StateStarted {
		return r.Stop()
	}
	return nil
}

func (e *Engine) ensureDisabled(r renderer.Renderer) error {
	if err := ensureStopped(r); err != nil {
		return err
	}
	if r.State() == renderer.StateEnabled {
		if err := r.Disable(); err != nil {
			return err
		}
		if r == e.rendererClockSource {
			e.rendererClock = nil
			e.rendererClockSource = nil
		}
	}
	return nil
}

func (e *Engine) stopInternal() {
	e.resetInternal()
	e.setState(StateIdle)
}

func (e *Engine) releaseInternal() {
	e.resetInternal()
	e.setState(StateIdle)
	e.closeOnce.Do(func() {
		e.commands.close()
		e.events.close()
		close(e.released)
	})
	// Seeks still queued are dropped with the queue.
	e.pendingSeekCount.Store(0)
	log.Component("engine").Info("released")
}

// resetInternal stops, disables and releases every renderer. Failures are logged and do not stop the
// remaining renderers from being released.
func (e *Engine) resetInternal() {
	e.cancelScheduled()
	e.rebuffering = false
	e.standaloneClock.Stop()
	if e.renderers == nil {
		return
	}

	for i, r := range e.renderers {
		e.safely(i, "disable", func() error {
			if err := ensureStopped(r); err != nil {
				return err
			}
			if r.State() == renderer.StateEnabled {
				return r.Disable()
			}
			return nil
		})
		e.safely(i, "release", r.Release)
	}

	e.renderers = nil
	e.enabledRenderers = nil
	e.rendererClock = nil
	e.rendererClockSource = nil
}

func (e *Engine) safely(rendererIndex int, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Component("engine").WithField("renderer", rendererIndex).Errorf("%s: %v", op, r)
		}
	}()
	if err := fn(); err != nil {
		log.Component("engine").WithField("renderer", rendererIndex).Errorf("%s: %v", op, err)
	}
}

func (e *Engine) setState(state State) {
	if e.state == state {
		return
	}
	log.Component("engine").WithFields(map[string]any{
		"from": e.state.String(),
		"to":   state.String(),
	}).Debug("state changed")
	e.state = state
	e.emit(Event{Type: EventStateChanged, State: state})
}

// cancelScheduled drops every pending work and preparation command.
func (e *Engine) cancelScheduled() {
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) scheduleNow(kind commandKind) {
	e.send(command{kind: kind, generation: e.generation})
}

// scheduleNext queues kind interval after operationStart.
func (e *Engine) scheduleNext(kind commandKind, operationStart, interval time.Duration) {
	delay := operationStart + interval - e.opts.Clock.Elapsed()
	if delay <= 0 {
		e.scheduleNow(kind)
		return
	}

	generation := e.generation
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(delay, func() {
		e.send(command{kind: kind, generation: generation})
	})
}
