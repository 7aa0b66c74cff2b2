package player

import (
	"context"
	"errors"
	"slices"

	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/log"
)

// Listener receives playback events. Nil fields are skipped. Callbacks run on the player's dispatch
// goroutine, one at a time and in the order the engine produced them.
type Listener struct {
	StateChanged           func(playWhenReady bool, state engine.State)
	PlayWhenReadyCommitted func()
	Error                  func(err error)
}

func (l *Listener) stateChanged(playWhenReady bool, state engine.State) {
	if l.StateChanged != nil {
		l.StateChanged(playWhenReady, state)
	}
}

func (l *Listener) playWhenReadyCommitted() {
	if l.PlayWhenReadyCommitted != nil {
		l.PlayWhenReadyCommitted()
	}
}

func (l *Listener) error(err error) {
	if l.Error != nil {
		l.Error(err)
	}
}

func (p *Player) AddListener(l *Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *Player) RemoveListener(l *Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = slices.DeleteFunc(p.listeners, func(other *Listener) bool { return other == l })
}

// snapshotListeners must be called with p.mu held.
func (p *Player) snapshotListeners() []*Listener {
	return slices.Clone(p.listeners)
}

// dispatch delivers engine events until the engine was released and drained.
func (p *Player) dispatch(ctx context.Context) error {
	for {
		ev, err := p.engine.NextEvent(ctx)
		if errors.Is(err, engine.ErrReleased) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		p.dispatching.Store(true)
		p.handleEvent(ev)
		p.dispatching.Store(false)
	}
}

func (p *Player) handleEvent(ev engine.Event) {
	p.mu.Lock()
	listeners := p.snapshotListeners()
	playWhenReady := p.playWhenReady

	switch ev.Type {
	case engine.EventPrepared:
		copy(p.trackFormats, ev.TrackFormats)
		p.state = ev.State
		p.mu.Unlock()
		for _, l := range listeners {
			l.stateChanged(playWhenReady, ev.State)
		}

	case engine.EventStateChanged:
		p.state = ev.State
		p.mu.Unlock()
		for _, l := range listeners {
			l.stateChanged(playWhenReady, ev.State)
		}

	case engine.EventPlayWhenReadyAck:
		p.pendingAcks--
		committed := p.pendingAcks == 0
		p.mu.Unlock()
		if committed {
			for _, l := range listeners {
				l.playWhenReadyCommitted()
			}
		}

	case engine.EventError:
		p.mu.Unlock()
		log.Component("player").Warnf("playback error: %v", ev.Err)
		for _, l := range listeners {
			l.error(ev.Err)
		}

	default:
		p.mu.Unlock()
	}
}
