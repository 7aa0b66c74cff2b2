// Package loadcontrol decides whether sample loaders may fetch more media and owns the memory they
// load into.
package loadcontrol

import (
	"context"
	"sync"
)

// Allocation is one fixed-size chunk of loader memory.
type Allocation struct {
	Data []byte
}

// Allocator hands out fixed-size allocations and pools released ones.
type Allocator interface {
	Allocate() *Allocation
	Release(allocations ...*Allocation)
	// Trim drops pooled allocations until at most targetSize bytes are held.
	Trim(targetSize int)
	TotalBytesAllocated() int
	IndividualAllocationLength() int
	// BlockWhileTotalBytesAllocatedExceeds waits until allocations were released below limit.
	BlockWhileTotalBytesAllocatedExceeds(ctx context.Context, limit int) error
}

// DefaultAllocator is a pooling Allocator safe for concurrent use.
type DefaultAllocator struct {
	individualAllocationSize int

	mu        sync.Mutex
	allocated int
	available []*Allocation
	released  chan struct{}
}

// NewDefaultAllocator returns an allocator handing out chunks of individualAllocationSize bytes.
func NewDefaultAllocator(individualAllocationSize int) *DefaultAllocator {
	if individualAllocationSize <= 0 {
		panic("loadcontrol: allocation size must be positive")
	}
	return &DefaultAllocator{
		individualAllocationSize: individualAllocationSize,
		released:                 make(chan struct{}),
	}
}

func (a *DefaultAllocator) Allocate() *Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.allocated++
	if n := len(a.available); n > 0 {
		allocation := a.available[n-1]
		a.available = a.available[:n-1]
		return allocation
	}
	return &Allocation{Data: make([]byte, a.individualAllocationSize)}
}

func (a *DefaultAllocator) Release(allocations ...*Allocation) {
	if len(allocations) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, allocation := range allocations {
		if len(allocation.Data) != a.individualAllocationSize {
			panic("loadcontrol: released allocation of foreign size")
		}
		a.available = append(a.available, allocation)
	}
	a.allocated -= len(allocations)

	close(a.released)
	a.released = make(chan struct{})
}

func (a *DefaultAllocator) Trim(targetSize int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	targetAllocationCount := ceilDivide(targetSize, a.individualAllocationSize)
	targetAvailableCount := max(0, targetAllocationCount-a.allocated)
	if targetAvailableCount >= len(a.available) {
		return
	}

	clear(a.available[targetAvailableCount:])
	a.available = a.available[:targetAvailableCount]
}

func (a *DefaultAllocator) TotalBytesAllocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated * a.individualAllocationSize
}

// PooledCount returns the number of released allocations kept for reuse.
func (a *DefaultAllocator) PooledCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.available)
}

func (a *DefaultAllocator) IndividualAllocationLength() int {
	return a.individualAllocationSize
}

func (a *DefaultAllocator) BlockWhileTotalBytesAllocatedExceeds(ctx context.Context, limit int) error {
	for {
		a.mu.Lock()
		total := a.allocated * a.individualAllocationSize
		released := a.released
		a.mu.Unlock()

		if total <= limit {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
		}
	}
}

func ceilDivide(numerator, denominator int) int {
	return (numerator + denominator - 1) / denominator
}
