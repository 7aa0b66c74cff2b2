package loadcontrol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Task priorities. Lower values take precedence.
const (
	StreamingPriority = 0
	DownloadPriority  = 10
)

// ErrPriorityTooLow is returned by ProceedOrError while a more important task holds the lock.
var ErrPriorityTooLow = errors.New("priority too low")

// PriorityLock lets the most important active tasks use the network while others wait.
type PriorityLock struct {
	mu      sync.Mutex
	holders map[int]int
	highest int
	changed chan struct{}
}

// NewPriorityLock returns a lock with no registered tasks.
func NewPriorityLock() *PriorityLock {
	return &PriorityLock{
		holders: make(map[int]int),
		highest: math.MaxInt,
		changed: make(chan struct{}),
	}
}

// NetworkLock is shared by every loader in the process.
var NetworkLock = NewPriorityLock()

// Add registers a task of the given priority.
func (l *PriorityLock) Add(priority int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.holders[priority]++
	l.highest = min(l.highest, priority)
}

// Remove unregisters a task previously added with the same priority.
func (l *PriorityLock) Remove(priority int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holders[priority] == 0 {
		panic(fmt.Sprintf("loadcontrol: remove of unregistered priority %d", priority))
	}
	l.holders[priority]--
	if l.holders[priority] == 0 {
		delete(l.holders, priority)
	}

	l.highest = math.MaxInt
	for p := range l.holders {
		l.highest = min(l.highest, p)
	}

	close(l.changed)
	l.changed = make(chan struct{})
}

// Proceed blocks until no task more important than priority is registered.
func (l *PriorityLock) Proceed(ctx context.Context, priority int) error {
	for {
		l.mu.Lock()
		ok := l.highest >= priority
		changed := l.changed
		l.mu.Unlock()

		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// ProceedNonBlocking reports whether a task of the given priority may proceed now.
func (l *PriorityLock) ProceedNonBlocking(priority int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.highest >= priority
}

// ProceedOrError returns ErrPriorityTooLow if a task of the given priority may not proceed now.
func (l *PriorityLock) ProceedOrError(priority int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.highest < priority {
		return fmt.Errorf("%w: %d, highest registered is %d", ErrPriorityTooLow, priority, l.highest)
	}
	return nil
}
