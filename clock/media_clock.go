package clock

// MediaClock reports the current playback position. Renderers that own a hardware position (an audio
// output, for example) expose one, and the engine makes it authoritative while that renderer is enabled.
type MediaClock interface {
	PositionUs() int64
}

// StandaloneClock is a MediaClock that derives its position from a realtime Source.
type StandaloneClock struct {
	source  Source
	started bool

	// positionUs is the position at the last stop or set while stopped; deltaUs is the offset from
	// elapsed realtime while started.
	positionUs int64
	deltaUs    int64
}

// NewStandaloneClock returns a stopped clock at position zero.
func NewStandaloneClock(source Source) *StandaloneClock {
	if source == nil {
		source = System
	}
	return &StandaloneClock{source: source}
}

// Start resumes the clock from its current position. Starting a started clock is a no-op.
func (c *StandaloneClock) Start() {
	if c.started {
		return
	}
	c.started = true
	c.deltaUs = c.nowUs() - c.positionUs
}

// Stop freezes the clock at its current position. Stopping a stopped clock is a no-op.
func (c *StandaloneClock) Stop() {
	if !c.started {
		return
	}
	c.positionUs = c.nowUs() - c.deltaUs
	c.started = false
}

// SetPositionUs moves the clock to positionUs without changing whether it runs.
func (c *StandaloneClock) SetPositionUs(positionUs int64) {
	c.positionUs = positionUs
	c.deltaUs = c.nowUs() - positionUs
}

// PositionUs returns the current position.
func (c *StandaloneClock) PositionUs() int64 {
	if c.started {
		return c.nowUs() - c.deltaUs
	}
	return c.positionUs
}

// Started reports whether the clock is running.
func (c *StandaloneClock) Started() bool {
	return c.started
}

func (c *StandaloneClock) nowUs() int64 {
	return ElapsedRealtimeUs(c.source)
}
