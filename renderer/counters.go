package renderer

import "sync"

// Counters track decoder activity. Values are published once per work cycle.
type Counters struct {
	DecoderInitCount                       int
	DecoderReleaseCount                    int
	OutputFormatChangedCount               int
	OutputBuffersChangedCount              int
	InputBufferCount                       int
	RenderedOutputBufferCount              int
	SkippedOutputBufferCount               int
	DroppedOutputBufferCount               int
	MaxConsecutiveDroppedOutputBufferCount int
}

// counters holds the working values on the engine goroutine and a snapshot for readers.
type counters struct {
	Counters

	mu       sync.Mutex
	snapshot Counters
}

// publish makes the working values visible to Snapshot.
func (c *counters) publish() {
	c.mu.Lock()
	c.snapshot = c.Counters
	c.mu.Unlock()
}

// Snapshot returns the values published last. Safe for concurrent use.
func (c *counters) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}
