package mp4source

import (
	"context"
	"time"

	"github.com/anisan-cli/reelplay/loadcontrol"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
)

// pendingLoad is the loader's view of its next fragment.
type pendingLoad struct {
	index      int
	generation int
	playbackUs int64
	// nextLoadUs is -1 when nothing is left to load.
	nextLoadUs int64
}

// load queues fragments for as long as the source is prepared. Each fragment is admitted by the load
// control and the network priority lock before it is charged to the allocator.
func (s *Source) load(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.opts.PollInterval)
	defer timer.Stop()

	for ctx.Err() == nil {
		next := s.nextLoad()
		admitted := s.opts.LoadControl.Update(s, next.playbackUs, next.nextLoadUs, false)
		if admitted {
			if err := s.opts.Lock.ProceedOrError(loadcontrol.StreamingPriority); err != nil {
				log.Tracef("mp4 load deferred: %v", err)
				admitted = false
			}
		}

		if admitted {
			s.opts.LoadControl.Update(s, next.playbackUs, next.nextLoadUs, true)
			s.commit(next)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.opts.PollInterval)

		select {
		case <-ctx.Done():
		case <-s.wake:
		case <-timer.C:
		}
	}

	s.opts.LoadControl.Update(s, s.playbackPosition(), -1, false)
}

// nextLoad skips fragments of disabled tracks and returns the next fragment to queue.
func (s *Source) nextLoad() pendingLoad {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled := make(map[int]bool)
	for _, track := range s.enabledTracks() {
		enabled[track] = true
	}

	next := pendingLoad{generation: s.generation, playbackUs: s.playbackUs, nextLoadUs: -1}
	if len(enabled) == 0 {
		return next
	}
	for s.nextFragment < len(s.movie.fragments) && !enabled[s.movie.fragments[s.nextFragment].track] {
		s.nextFragment++
	}
	next.index = s.nextFragment
	if next.index < len(s.movie.fragments) {
		next.nextLoadUs = s.movie.fragments[next.index].startUs
	}
	return next
}

// commit queues the samples of an admitted fragment unless a seek or track change intervened.
func (s *Source) commit(next pendingLoad) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next.generation != s.generation || next.nextLoadUs == -1 || next.index != s.nextFragment {
		return
	}

	frag := s.movie.fragments[next.index]
	s.nextFragment++

	st := &s.states[frag.track]
	owner := &loadedFragment{}
	for _, smp := range frag.samples {
		if smp.decodeUs <= st.lastQueuedDecodeUs {
			continue
		}
		if st.needSync && smp.flags&media.FlagSync == 0 {
			continue
		}
		st.needSync = false
		st.lastQueuedDecodeUs = smp.decodeUs
		st.queue = append(st.queue, queuedSample{sample: smp, owner: owner})
		owner.remaining++
	}
	st.bufferedUs = max(st.bufferedUs, frag.endUs)

	if owner.remaining == 0 {
		return
	}

	allocator := s.opts.LoadControl.Allocator()
	count := max(1, ceilDivide(frag.size, allocator.IndividualAllocationLength()))
	owner.allocations = make([]*loadcontrol.Allocation, count)
	for i := range owner.allocations {
		owner.allocations[i] = allocator.Allocate()
	}
}

func (s *Source) playbackPosition() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackUs
}

func ceilDivide(numerator, denominator int) int {
	return (numerator + denominator - 1) / denominator
}
