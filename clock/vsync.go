package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// VsyncSampler samples the display's vertical sync pulses. Observers are reference counted so
// sampling only runs while some video renderer needs it.
type VsyncSampler interface {
	// SampledVsyncTimeNs returns the time of the most recent pulse, or zero if none was seen yet.
	SampledVsyncTimeNs() int64
	AddObserver()
	RemoveObserver()
}

// TickerVsyncSampler approximates vsync with a ticker running at the display refresh rate.
type TickerVsyncSampler struct {
	source Source
	period time.Duration

	sampled atomic.Int64

	mu        sync.Mutex
	observers int
	stop      chan struct{}
	done      chan struct{}
}

// NewTickerVsyncSampler returns a sampler for a display refreshing at refreshRate Hz.
func NewTickerVsyncSampler(source Source, refreshRate float64) *TickerVsyncSampler {
	if source == nil {
		source = System
	}
	return &TickerVsyncSampler{
		source: source,
		period: time.Duration(float64(time.Second) / refreshRate),
	}
}

func (s *TickerVsyncSampler) SampledVsyncTimeNs() int64 {
	return s.sampled.Load()
}

func (s *TickerVsyncSampler) AddObserver() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers++
	if s.observers == 1 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.run(s.stop, s.done)
	}
}

func (s *TickerVsyncSampler) RemoveObserver() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observers == 0 {
		return
	}
	s.observers--
	if s.observers == 0 {
		close(s.stop)
		<-s.done
		s.sampled.Store(0)
	}
}

func (s *TickerVsyncSampler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sampled.Store(NanoTime(s.source))
		}
	}
}

// FixedVsyncSampler reports a constant pulse time. Since snapping only needs the phase of the
// pulses, a single known pulse is enough for displays with a stable refresh rate.
type FixedVsyncSampler struct {
	pulseNs   atomic.Int64
	observers atomic.Int32
}

// NewFixedVsyncSampler returns a sampler reporting pulseNs.
func NewFixedVsyncSampler(pulseNs int64) *FixedVsyncSampler {
	s := &FixedVsyncSampler{}
	s.pulseNs.Store(pulseNs)
	return s
}

func (s *FixedVsyncSampler) SampledVsyncTimeNs() int64 { return s.pulseNs.Load() }
func (s *FixedVsyncSampler) AddObserver()              { s.observers.Add(1) }
func (s *FixedVsyncSampler) RemoveObserver()           { s.observers.Add(-1) }

// Observers returns the number of registered observers.
func (s *FixedVsyncSampler) Observers() int {
	return int(s.observers.Load())
}
