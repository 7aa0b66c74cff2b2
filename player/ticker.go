package player

import "time"

// StartTicker calls callback with the position and duration every interval until StopTicker or
// Release. Starting a running ticker is a no-op.
func (p *Player) StartTicker(interval time.Duration, callback func(positionMs, durationMs int64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStop != nil {
		return
	}

	stop := make(chan struct{})
	p.tickerStop = stop
	released := p.engine.Released()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-released:
				return
			case <-ticker.C:
				callback(p.PositionMs(), p.DurationMs())
			}
		}
	}()
}

// StopTicker stops the ticker if it is running.
func (p *Player) StopTicker() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStop != nil {
		close(p.tickerStop)
		p.tickerStop = nil
	}
}
