// Package player is the handle applications hold on a playback session. Calls are forwarded to the
// engine goroutine without waiting, and the engine's events are dispatched to listeners on a goroutine of
// their own.
package player

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/renderer"
	"golang.org/x/sync/errgroup"
)

// UnknownTime is returned by the time getters when the value is not known.
const UnknownTime = media.UnknownTimeUs

// Options configure a Player.
type Options struct {
	Engine engine.Options
	// PlayWhenReady starts playback as soon as enough media is buffered.
	PlayWhenReady bool
}

// DefaultOptions returns the stock engine options with playback paused.
func DefaultOptions() Options {
	return Options{Engine: engine.DefaultOptions()}
}

// Player controls one playback session over a fixed number of renderers.
type Player struct {
	engine *engine.Engine
	group  *errgroup.Group
	cancel context.CancelFunc

	// engineDone is closed once the engine goroutine returned engineErr.
	engineDone chan struct{}
	engineErr  error
	// dispatching is set while listeners are being called.
	dispatching atomic.Bool

	releaseOnce sync.Once
	tickerStop  chan struct{}

	mu             sync.Mutex
	listeners      []*Listener
	playWhenReady  bool
	pendingAcks    int
	state          engine.State
	trackFormats   [][]*media.Format
	selectedTracks []int
}

// New starts a player for rendererCount renderers. Release must be called once done.
func New(rendererCount int, opts Options) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &Player{
		engine:         engine.New(opts.Engine),
		group:          group,
		cancel:         cancel,
		engineDone:     make(chan struct{}),
		state:          engine.StateIdle,
		trackFormats:   make([][]*media.Format, rendererCount),
		selectedTracks: make([]int, rendererCount),
	}

	group.Go(func() error {
		defer close(p.engineDone)
		p.engineErr = p.engine.Run(ctx)
		return p.engineErr
	})
	group.Go(func() error { return p.dispatch(ctx) })

	if opts.PlayWhenReady {
		p.SetPlayWhenReady(true)
	}
	return p
}

// Prepare starts preparing renderers, one per renderer slot.
func (p *Player) Prepare(renderers ...renderer.Renderer) {
	p.mu.Lock()
	for i := range p.trackFormats {
		p.trackFormats[i] = nil
	}
	p.mu.Unlock()

	p.engine.Prepare(renderers...)
}

// SetPlayWhenReady sets whether playback proceeds once ready. Listeners are told about the change
// immediately and again once the engine committed it.
func (p *Player) SetPlayWhenReady(playWhenReady bool) {
	p.mu.Lock()
	if p.playWhenReady == playWhenReady {
		p.mu.Unlock()
		return
	}
	p.playWhenReady = playWhenReady
	p.pendingAcks++
	state := p.state
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	p.engine.SetPlayWhenReady(playWhenReady)
	for _, l := range listeners {
		l.stateChanged(playWhenReady, state)
	}
}

// TogglePause flips play when ready.
func (p *Player) TogglePause() {
	p.SetPlayWhenReady(!p.PlayWhenReady())
}

func (p *Player) PlayWhenReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playWhenReady
}

// PlayWhenReadyCommitted reports whether the engine acknowledged every SetPlayWhenReady call.
func (p *Player) PlayWhenReadyCommitted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingAcks == 0
}

// PlaybackState returns the last state reported by the engine.
func (p *Player) PlaybackState() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetSelectedTrack selects the track played by a renderer slot, or engine.TrackDisabled.
func (p *Player) SetSelectedTrack(rendererIndex, trackIndex int) {
	p.mu.Lock()
	if rendererIndex < 0 || rendererIndex >= len(p.selectedTracks) || p.selectedTracks[rendererIndex] == trackIndex {
		p.mu.Unlock()
		return
	}
	p.selectedTracks[rendererIndex] = trackIndex
	p.mu.Unlock()

	p.engine.SetSelectedTrack(rendererIndex, trackIndex)
}

// SelectedTrack returns the track selected for a renderer slot.
func (p *Player) SelectedTrack(rendererIndex int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectedTracks[rendererIndex]
}

// TrackCount returns the number of tracks of a renderer slot, zero until prepared.
func (p *Player) TrackCount(rendererIndex int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trackFormats[rendererIndex])
}

// TrackFormat returns the format of one track of a renderer slot.
func (p *Player) TrackFormat(rendererIndex, trackIndex int) *media.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trackFormats[rendererIndex][trackIndex]
}

// SeekTo moves playback to positionMs.
func (p *Player) SeekTo(positionMs int64) {
	p.engine.SeekTo(positionMs)
}

// Stop ends playback and releases the renderers. The player can be prepared again.
func (p *Player) Stop() {
	p.engine.Stop()
}

// SendMessage delivers a message to target on the engine goroutine.
func (p *Player) SendMessage(target renderer.MessageHandler, msgType int, payload any) {
	p.engine.SendMessage(target, msgType, payload)
}

// BlockingSendMessage delivers a message to target and waits until it was handled.
func (p *Player) BlockingSendMessage(target renderer.MessageHandler, msgType int, payload any) error {
	return p.engine.BlockingSendMessage(target, msgType, payload)
}

// DurationMs returns the media duration or UnknownTime.
func (p *Player) DurationMs() int64 {
	return p.engine.DurationMs()
}

// PositionMs returns the playback position, or the target of a seek still in flight.
func (p *Player) PositionMs() int64 {
	return p.engine.PositionMs()
}

// BufferedPositionMs returns how far the media is buffered or UnknownTime.
func (p *Player) BufferedPositionMs() int64 {
	return p.engine.BufferedPositionMs()
}

// BufferedPercentage returns the buffered share of the media, 0 when either value is unknown.
func (p *Player) BufferedPercentage() int {
	buffered := p.BufferedPositionMs()
	duration := p.DurationMs()
	switch {
	case buffered == UnknownTime || duration == UnknownTime:
		return 0
	case duration == 0:
		return 100
	default:
		return int(min(buffered*100/duration, 100))
	}
}

// Release ends the session and waits for the engine to shut down. Calling it again has no effect.
// Listeners may call it; the events still queued are then delivered after it returned.
func (p *Player) Release() error {
	var err error
	p.releaseOnce.Do(func() {
		p.StopTicker()
		p.engine.Release()
		if p.dispatching.Load() {
			<-p.engineDone
			err = p.engineErr
			go func() {
				_ = p.group.Wait()
				p.cancel()
			}()
		} else {
			err = p.group.Wait()
			p.cancel()
		}
		log.Component("player").Info("released")
	})
	return err
}

// Wait returns a channel that is closed once the player was released.
func (p *Player) Wait() <-chan struct{} {
	return p.engine.Released()
}
