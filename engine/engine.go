// Package engine runs playback. A single goroutine owns every renderer and the clocks; callers talk to
// it through an ordered command queue and hear back through an event queue.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
)

// State is the aggregate playback state.
type State int

const (
	StateIdle State = iota + 1
	StatePreparing
	StateBuffering
	StateReady
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateBuffering:
		return "buffering"
	case StateReady:
		return "ready"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// TrackDefault is the track selected for a renderer until told otherwise.
	TrackDefault = 0
	// TrackDisabled deselects every track of a renderer.
	TrackDisabled = -1
)

const (
	prepareInterval   = 10 * time.Millisecond
	renderingInterval = 10 * time.Millisecond
	idleInterval      = time.Second
)

// Options configure an Engine.
type Options struct {
	// MinBuffer is the media a ready renderer must hold ahead of the position before playback starts.
	MinBuffer time.Duration
	// MinRebuffer replaces MinBuffer after playback stalled.
	MinRebuffer time.Duration
	// Clock drives the standalone media clock and the realtime passed to renderers.
	Clock clock.Source
}

// DefaultOptions returns the stock buffering thresholds.
func DefaultOptions() Options {
	return Options{
		MinBuffer:   2500 * time.Millisecond,
		MinRebuffer: 5000 * time.Millisecond,
		Clock:       clock.System,
	}
}

// EventType identifies an Event.
type EventType int

const (
	// EventPrepared carries the state reached by preparation and the formats of every renderer's tracks.
	EventPrepared EventType = iota + 1
	EventStateChanged
	// EventPlayWhenReadyAck acknowledges one SetPlayWhenReady call.
	EventPlayWhenReadyAck
	EventError
)

// Event is delivered to the owner of the engine, in order.
type Event struct {
	Type         EventType
	State        State
	TrackFormats [][]*media.Format
	Err          error
}

type commandKind int

const (
	cmdPrepare commandKind = iota
	cmdIncrementalPrepare
	cmdDoSomeWork
	cmdSetPlayWhenReady
	cmdSeekTo
	cmdStop
	cmdRelease
	cmdCustom
	cmdSetSelectedTrack
)

type command struct {
	kind commandKind

	renderers     []renderer.Renderer
	playWhenReady bool
	positionMs    int64
	rendererIndex int
	trackIndex    int
	generation    uint64

	target  renderer.MessageHandler
	msgType int
	payload any
	done    chan error
}

// Engine is the playback scheduler. The exported methods may be called from any goroutine; everything
// else happens on the goroutine running Run.
type Engine struct {
	opts Options

	commands *queue[command]
	events   *queue[Event]

	releaseOnce sync.Once
	closeOnce   sync.Once
	released    chan struct{}

	// Published for non-blocking reads.
	positionUs         atomic.Int64
	bufferedPositionUs atomic.Int64
	durationUs         atomic.Int64
	pendingSeekCount   atomic.Int32
	lastSeekPositionMs atomic.Int64

	// Owned by the engine goroutine.
	renderers           []renderer.Renderer
	enabledRenderers    []renderer.Renderer
	trackFormats        [][]*media.Format
	selectedTracks      map[int]int
	standaloneClock     *clock.StandaloneClock
	rendererClock       clock.MediaClock
	rendererClockSource renderer.Renderer
	state               State
	playWhenReady       bool
	rebuffering         bool
	elapsedRealtimeUs   int64

	// generation invalidates scheduled work and preparation commands still queued or pending on timer.
	generation uint64
	timer      *time.Timer
}

// New returns an idle engine. Run must be called to process commands.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}

	e := &Engine{
		opts:            opts,
		commands:        newQueue[command](),
		events:          newQueue[Event](),
		released:        make(chan struct{}),
		selectedTracks:  make(map[int]int),
		standaloneClock: clock.NewStandaloneClock(opts.Clock),
		state:           StateIdle,
	}
	e.durationUs.Store(media.UnknownTimeUs)
	e.bufferedPositionUs.Store(media.UnknownTimeUs)
	return e
}

// Run processes commands until the engine is released or ctx is done, in which case the engine releases
// itself.
func (e *Engine) Run(ctx context.Context) error {
	for {
		c, err := e.commands.pop(ctx)
		if err != nil {
			e.handle(command{kind: cmdRelease})
			return nil
		}
		if e.handle(c) {
			return nil
		}
	}
}

// NextEvent returns the next event, waiting for one. ErrReleased is returned once the engine was
// released and every event was consumed.
func (e *Engine) NextEvent(ctx context.Context) (Event, error) {
	return e.events.pop(ctx)
}

// Prepare releases any previous renderers and prepares renderers for playback.
func (e *Engine) Prepare(renderers ...renderer.Renderer) {
	e.send(command{kind: cmdPrepare, renderers: renderers})
}

func (e *Engine) SetPlayWhenReady(playWhenReady bool) {
	e.send(command{kind: cmdSetPlayWhenReady, playWhenReady: playWhenReady})
}

// SetSelectedTrack selects the track a renderer plays, or TrackDisabled.
func (e *Engine) SetSelectedTrack(rendererIndex, trackIndex int) {
	e.send(command{kind: cmdSetSelectedTrack, rendererIndex: rendererIndex, trackIndex: trackIndex})
}

// SeekTo moves playback to positionMs. PositionMs reports the latest target until every seek was handled.
func (e *Engine) SeekTo(positionMs int64) {
	e.lastSeekPositionMs.Store(positionMs)
	e.pendingSeekCount.Add(1)
	if !e.send(command{kind: cmdSeekTo, positionMs: positionMs}) {
		e.pendingSeekCount.Add(-1)
	}
}

// Stop releases the renderers and returns the engine to idle.
func (e *Engine) Stop() {
	e.send(command{kind: cmdStop})
}

// SendMessage delivers a message to target on the engine goroutine.
func (e *Engine) SendMessage(target renderer.MessageHandler, msgType int, payload any) {
	e.send(command{kind: cmdCustom, target: target, msgType: msgType, payload: payload})
}

// BlockingSendMessage delivers a message to target and waits until it was handled.
func (e *Engine) BlockingSendMessage(target renderer.MessageHandler, msgType int, payload any) error {
	done := make(chan error, 1)
	if !e.send(command{kind: cmdCustom, target: target, msgType: msgType, payload: payload, done: done}) {
		log.Warnf("blocking message %d sent after release", msgType)
		return ErrReleased
	}

	select {
	case err := <-done:
		return err
	case <-e.released:
		return ErrReleased
	}
}

// Release stops playback and waits for the engine goroutine to acknowledge. It is safe to call more
// than once.
func (e *Engine) Release() {
	e.releaseOnce.Do(func() {
		e.commands.push(command{kind: cmdRelease})
	})
	<-e.released
}

// Released is closed once the engine was released.
func (e *Engine) Released() <-chan struct{} {
	return e.released
}

// PositionMs returns the playback position, or the target of the latest seek while seeks are pending.
func (e *Engine) PositionMs() int64 {
	if e.pendingSeekCount.Load() > 0 {
		return e.lastSeekPositionMs.Load()
	}
	return e.positionUs.Load() / 1000
}

// BufferedPositionMs returns how far the media is buffered, or media.UnknownTimeUs.
func (e *Engine) BufferedPositionMs() int64 {
	return usToMs(e.bufferedPositionUs.Load())
}

// DurationMs returns the media duration, or media.UnknownTimeUs.
func (e *Engine) DurationMs() int64 {
	return usToMs(e.durationUs.Load())
}

func usToMs(us int64) int64 {
	if us == media.UnknownTimeUs {
		return media.UnknownTimeUs
	}
	return us / 1000
}

func (e *Engine) send(c command) bool {
	return e.commands.push(c)
}

func (e *Engine) emit(ev Event) {
	e.events.push(ev)
}
