package source

import "sync"

// RefCount tracks the readers registered against a source.
type RefCount struct {
	mu    sync.Mutex
	count int
}

// Acquire adds a reference and reports whether it is the first.
func (r *RefCount) Acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.count == 1
}

// Release drops a reference and reports whether it was the last. Releasing with no references panics.
func (r *RefCount) Release() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		panic("source: release without a matching register")
	}
	r.count--
	return r.count == 0
}

// Count returns the number of live references.
func (r *RefCount) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
