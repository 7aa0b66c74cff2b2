package renderer

import (
	"fmt"

	"github.com/anisan-cli/reelplay/log"
)

// lifecycle is implemented by each variant. Every hook runs after the state changed.
type lifecycle interface {
	doPrepare(positionUs int64) (bool, error)
	onEnabled(track int, positionUs int64, joining bool) error
	onStarted() error
	onStopped() error
	onDisabled() error
	onReleased() error
}

// base is the state machine shared by the variants.
type base struct {
	kind  Kind
	state State
	hooks lifecycle
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) State() State {
	return b.state
}

func (b *base) Prepare(positionUs int64) (bool, error) {
	b.checkState("prepare", StateUnprepared)
	prepared, err := b.hooks.doPrepare(positionUs)
	if err != nil {
		return false, err
	}
	if prepared {
		b.transition(StatePrepared)
	}
	return prepared, nil
}

func (b *base) Enable(track int, positionUs int64, joining bool) error {
	b.checkState("enable", StatePrepared)
	b.transition(StateEnabled)
	return b.hooks.onEnabled(track, positionUs, joining)
}

func (b *base) Start() error {
	b.checkState("start", StateEnabled)
	b.transition(StateStarted)
	return b.hooks.onStarted()
}

func (b *base) Stop() error {
	b.checkState("stop", StateStarted)
	b.transition(StateEnabled)
	return b.hooks.onStopped()
}

func (b *base) Disable() error {
	b.checkState("disable", StateEnabled)
	b.transition(StatePrepared)
	return b.hooks.onDisabled()
}

func (b *base) Release() error {
	b.checkState("release", StateUnprepared, StatePrepared)
	b.transition(StateReleased)
	return b.hooks.onReleased()
}

func (b *base) transition(to State) {
	log.Component("renderer").WithFields(map[string]any{
		"renderer": b.kind.String(),
		"from":     b.state.String(),
		"to":       to.String(),
	}).Debug("renderer transition")
	b.state = to
}

// checkState panics unless the renderer is in one of allowed.
func (b *base) checkState(op string, allowed ...State) {
	for _, s := range allowed {
		if b.state == s {
			return
		}
	}
	panic(fmt.Sprintf("renderer: %s %s renderer in state %s", op, b.kind, b.state))
}
