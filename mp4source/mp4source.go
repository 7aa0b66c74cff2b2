// Package mp4source plays fragmented MP4 files. The file is fetched and parsed while the source
// prepares; a loader goroutine then moves fragments into the read queues whenever the load control
// admits it, charging their size to the shared allocator.
package mp4source

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/anisan-cli/reelplay/loadcontrol"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

// DefaultMinLoadableRetryCount is how often a failed fetch is retried before the error is surfaced.
const DefaultMinLoadableRetryCount = 3

// Options configure a Source.
type Options struct {
	// LoadControl admits loads. Required.
	LoadControl loadcontrol.LoadControl
	// BufferSizeContribution is the number of bytes this source may hold.
	BufferSizeContribution int
	// Lock is consulted before every load. Defaults to loadcontrol.NetworkLock.
	Lock *loadcontrol.PriorityLock
	// MinLoadableRetryCount failures are tolerated before preparation fails.
	MinLoadableRetryCount int
	// RetryBackoff grows the wait between attempts. Defaults to one second.
	RetryBackoff time.Duration
	// PollInterval bounds how long the loader sleeps before asking the load control again.
	PollInterval time.Duration
}

// DefaultOptions returns options for a source registered with lc.
func DefaultOptions(lc loadcontrol.LoadControl) Options {
	return Options{
		LoadControl:            lc,
		BufferSizeContribution: 16 << 20,
		MinLoadableRetryCount:  DefaultMinLoadableRetryCount,
		RetryBackoff:           time.Second,
		PollInterval:           100 * time.Millisecond,
	}
}

type trackState struct {
	enabled              bool
	formatSent           bool
	pendingDiscontinuity bool
	needSync             bool
	decodeOnlyBeforeUs   int64
	lastQueuedDecodeUs   int64
	bufferedUs           int64
	queue                []queuedSample
}

type queuedSample struct {
	sample
	owner *loadedFragment
}

// loadedFragment owns the allocations charged for one fragment until all its samples were consumed.
type loadedFragment struct {
	allocations []*loadcontrol.Allocation
	remaining   int
}

// Source is a SampleSource over one fragmented MP4 file. It is also its own Reader; every
// registration shares the same state.
type Source struct {
	uri  string
	opts Options

	refs source.RefCount
	wg   sync.WaitGroup
	wake chan struct{}

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	movie      *movie
	fetching   bool
	errorCount int
	fatal      error
	prepared   bool
	registered bool

	states       []trackState
	nextFragment int
	generation   int
	playbackUs   int64
	lastSeekUs   int64
}

// New returns a source reading uri, a local path or an http(s) URL.
func New(uri string, opts Options) *Source {
	if opts.LoadControl == nil {
		panic("mp4source: load control required")
	}
	if opts.Lock == nil {
		opts.Lock = loadcontrol.NetworkLock
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}

	return &Source{
		uri:  uri,
		opts: opts,
		wake: make(chan struct{}, 1),
	}
}

func (s *Source) Register() source.Reader {
	s.refs.Acquire()
	return s
}

func (s *Source) Prepare(int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prepared {
		return true, nil
	}
	if s.fatal != nil {
		return false, s.fatal
	}
	if s.movie == nil {
		if !s.fetching {
			s.fetching = true
			s.wg.Add(1)
			go s.fetchLoop(s.context())
		}
		return false, nil
	}

	s.prepared = true
	s.states = make([]trackState, len(s.movie.tracks))
	s.nextFragment = 0
	s.opts.LoadControl.Register(s, s.opts.BufferSizeContribution)
	s.registered = true

	s.wg.Add(1)
	go s.load(s.context())
	return true, nil
}

// context must be called with s.mu held.
func (s *Source) context() context.Context {
	if s.ctx == nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	return s.ctx
}

// fetchLoop fetches the file, retrying failed attempts with a growing delay.
func (s *Source) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		m, err := fetch(ctx, s.uri)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		if err == nil {
			s.movie = m
			s.fetching = false
			s.errorCount = 0
			s.mu.Unlock()
			log.WithFields(map[string]any{"uri": s.uri, "tracks": len(m.tracks), "fragments": len(m.fragments)}).Info("mp4 source parsed")
			return
		}

		s.errorCount++
		count := s.errorCount
		if count > s.opts.MinLoadableRetryCount {
			s.fatal = err
			s.fetching = false
		}
		s.mu.Unlock()

		log.WithFields(map[string]any{"uri": s.uri, "attempt": count}).Warnf("fetch failed: %v", err)
		if count > s.opts.MinLoadableRetryCount {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay(s.opts.RetryBackoff, count)):
		}
	}
}

func (s *Source) TrackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movie.tracks)
}

func (s *Source) Format(track int) *media.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movie.tracks[track].format
}

func (s *Source) Enable(track int, positionUs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.states[track]
	if st.enabled {
		panic("mp4source: track already enabled")
	}

	firstEnabled := len(s.enabledTracks()) == 0
	s.resetTrack(track, positionUs)
	st.enabled = true
	st.formatSent = false
	st.pendingDiscontinuity = false

	s.generation++
	restart := s.movie.seekIndex(positionUs, []int{track})
	if firstEnabled {
		s.lastSeekUs = positionUs
		s.playbackUs = positionUs
		s.nextFragment = restart
	} else {
		s.nextFragment = min(s.nextFragment, restart)
	}
	s.signal()
}

func (s *Source) Disable(track int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.states[track]
	if !st.enabled {
		panic("mp4source: track not enabled")
	}
	st.enabled = false
	s.generation++
	s.discardQueue(track)
}

func (s *Source) ContinueBuffering(track int, positionUs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playbackUs = positionUs
	s.signal()
	return len(s.states[track].queue) > 0 || s.trackLoaded(track)
}

func (s *Source) ReadDiscontinuity(track int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.states[track]
	if !st.pendingDiscontinuity {
		return source.NoDiscontinuity
	}
	st.pendingDiscontinuity = false
	return s.lastSeekUs
}

func (s *Source) ReadData(track int, _ int64, formatHolder *media.FormatHolder, sampleHolder *media.SampleHolder) (source.ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.states[track]
	if st.pendingDiscontinuity {
		return source.NothingRead, nil
	}
	if !st.formatSent {
		formatHolder.Format = s.movie.tracks[track].format
		formatHolder.DrmInitData = nil
		st.formatSent = true
		return source.FormatRead, nil
	}
	if len(st.queue) == 0 {
		if s.trackLoaded(track) {
			return source.EndOfStream, nil
		}
		return source.NothingRead, nil
	}
	if sampleHolder == nil {
		return source.NothingRead, nil
	}

	next := st.queue[0]
	if _, err := sampleHolder.Write(next.data); err != nil {
		return source.NothingRead, err
	}
	sampleHolder.TimeUs = next.timeUs
	sampleHolder.Flags = next.flags
	if next.timeUs < st.decodeOnlyBeforeUs {
		sampleHolder.Flags |= media.FlagDecodeOnly
	}

	st.queue[0] = queuedSample{}
	st.queue = st.queue[1:]
	s.consumed(next.owner)
	return source.SampleRead, nil
}

func (s *Source) SeekToUs(positionUs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.lastSeekUs = positionUs
	s.playbackUs = positionUs

	enabled := s.enabledTracks()
	for _, track := range enabled {
		s.resetTrack(track, positionUs)
		s.states[track].pendingDiscontinuity = true
	}
	s.nextFragment = s.movie.seekIndex(positionUs, enabled)
	s.signal()
}

func (s *Source) BufferedPositionUs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prepared {
		return media.UnknownTimeUs
	}

	buffered := int64(math.MaxInt64)
	enabled := false
	for _, track := range s.enabledTracks() {
		enabled = true
		if s.trackLoaded(track) {
			continue
		}
		buffered = min(buffered, s.states[track].bufferedUs)
	}
	switch {
	case !enabled:
		return media.UnknownTimeUs
	case buffered == math.MaxInt64:
		return media.EndOfTrackUs
	default:
		return buffered
	}
}

func (s *Source) MaybeThrowError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

func (s *Source) Release() {
	if !s.refs.Release() {
		return
	}

	s.mu.Lock()
	cancel := s.cancel
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	for track := range s.states {
		s.discardQueue(track)
	}
	registered := s.registered
	s.registered = false
	s.prepared = false
	s.fetching = false
	s.states = nil
	s.mu.Unlock()

	if registered {
		s.opts.LoadControl.Unregister(s)
	}
}

// enabledTracks must be called with s.mu held.
func (s *Source) enabledTracks() []int {
	var tracks []int
	for i, st := range s.states {
		if st.enabled {
			tracks = append(tracks, i)
		}
	}
	return tracks
}

// trackLoaded reports whether every fragment of track was queued. It must be called with s.mu held.
func (s *Source) trackLoaded(track int) bool {
	return s.nextFragment > s.movie.tracks[track].lastFragment
}

// resetTrack drops the queue of a track that restarts at positionUs. It must be called with s.mu held.
func (s *Source) resetTrack(track int, positionUs int64) {
	s.discardQueue(track)
	st := &s.states[track]
	st.needSync = true
	st.decodeOnlyBeforeUs = positionUs
	st.lastQueuedDecodeUs = math.MinInt64
	st.bufferedUs = positionUs
}

// discardQueue must be called with s.mu held.
func (s *Source) discardQueue(track int) {
	st := &s.states[track]
	for _, q := range st.queue {
		s.consumed(q.owner)
	}
	st.queue = nil
}

// consumed releases a fragment's allocations once its last sample left the queues. It must be called
// with s.mu held.
func (s *Source) consumed(owner *loadedFragment) {
	owner.remaining--
	if owner.remaining > 0 {
		return
	}
	s.opts.LoadControl.Allocator().Release(owner.allocations...)
	owner.allocations = nil
	s.signal()
}

// signal wakes the loader without blocking.
func (s *Source) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
