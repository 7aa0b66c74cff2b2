// Package clock provides the media clocks that drive playback and the timing helpers used to release
// video frames in step with the display.
package clock

import (
	"sync"
	"time"
)

// Source reports monotonic time elapsed since an arbitrary origin.
type Source interface {
	Elapsed() time.Duration
}

type systemSource struct {
	origin time.Time
}

func (s systemSource) Elapsed() time.Duration {
	return time.Since(s.origin)
}

// System is the realtime source backed by the process monotonic clock.
var System Source = systemSource{origin: time.Now()}

// ManualSource is a Source advanced explicitly by the caller.
type ManualSource struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManualSource returns a source positioned at start.
func NewManualSource(start time.Duration) *ManualSource {
	return &ManualSource{now: start}
}

func (m *ManualSource) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the source forward by d.
func (m *ManualSource) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// Set positions the source at now.
func (m *ManualSource) Set(now time.Duration) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// ElapsedRealtimeUs returns the elapsed time of s in microseconds.
func ElapsedRealtimeUs(s Source) int64 {
	return s.Elapsed().Microseconds()
}

// NanoTime returns the elapsed time of s in nanoseconds.
func NanoTime(s Source) int64 {
	return s.Elapsed().Nanoseconds()
}
