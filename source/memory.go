package source

import (
	"math"
	"sync"

	"github.com/anisan-cli/reelplay/media"
	"github.com/samber/lo"
)

// Sample is one access unit held by a Memory source.
type Sample struct {
	TimeUs     int64
	Flags      media.SampleFlags
	Data       []byte
	CryptoInfo *media.CryptoInfo

	// Format, when set, is announced before this sample is delivered.
	Format *media.Format
}

// Track is one track held by a Memory source. Samples must be ordered by time.
type Track struct {
	Format      *media.Format
	DrmInitData *media.DrmInitData
	Samples     []Sample
}

type memoryTrackState struct {
	enabled              bool
	next                 int
	formatSent           *media.Format
	pendingDiscontinuity bool
}

// Memory is a SampleSource over samples held in memory. Loading is simulated: only samples before the
// available position can be read, and tests move that position forward.
type Memory struct {
	mu sync.Mutex

	tracks  []Track
	formats [][]*media.Format
	states  []memoryTrackState
	refs    RefCount

	prepareDelay int
	prepared     bool
	availableUs  int64
	lastSeekUs   int64
	seekCount    int
	err          error
}

// NewMemory returns a source over tracks with every sample available.
func NewMemory(tracks ...Track) *Memory {
	m := &Memory{
		tracks:      tracks,
		states:      make([]memoryTrackState, len(tracks)),
		availableUs: math.MaxInt64,
	}

	m.formats = make([][]*media.Format, len(tracks))
	for i, t := range tracks {
		current := t.Format
		m.formats[i] = make([]*media.Format, len(t.Samples)+1)
		for j, s := range t.Samples {
			if s.Format != nil {
				current = s.Format
			}
			m.formats[i][j] = current
		}
		m.formats[i][len(t.Samples)] = current
	}

	return m
}

// SetPrepareDelay makes the next n calls to Prepare report false.
func (m *Memory) SetPrepareDelay(n int) {
	m.mu.Lock()
	m.prepareDelay = n
	m.mu.Unlock()
}

// SetAvailableUs simulates loading progress: samples at or after positionUs cannot be read yet.
// math.MaxInt64 makes everything available.
func (m *Memory) SetAvailableUs(positionUs int64) {
	m.mu.Lock()
	m.availableUs = positionUs
	m.mu.Unlock()
}

// SetError makes MaybeThrowError report err.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// SeekCount returns how many seeks the source received.
func (m *Memory) SeekCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seekCount
}

// References returns the number of registered readers.
func (m *Memory) References() int {
	return m.refs.Count()
}

func (m *Memory) Register() Reader {
	m.refs.Acquire()
	return m
}

func (m *Memory) Prepare(int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.prepared {
		return true, nil
	}
	if m.prepareDelay > 0 {
		m.prepareDelay--
		return false, nil
	}
	m.prepared = true
	return true, nil
}

func (m *Memory) TrackCount() int {
	return len(m.tracks)
}

func (m *Memory) Format(track int) *media.Format {
	return m.tracks[track].Format
}

func (m *Memory) Enable(track int, positionUs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &m.states[track]
	if st.enabled {
		panic("source: track already enabled")
	}
	st.enabled = true
	st.formatSent = nil
	st.pendingDiscontinuity = false
	st.next = m.syncIndex(track, positionUs)
	m.lastSeekUs = positionUs
}

func (m *Memory) Disable(track int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &m.states[track]
	if !st.enabled {
		panic("source: track not enabled")
	}
	st.enabled = false
}

func (m *Memory) ContinueBuffering(track int, _ int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.states[track]
	samples := m.tracks[track].Samples
	if st.next >= len(samples) {
		return true
	}
	return samples[st.next].TimeUs < m.availableUs
}

func (m *Memory) ReadDiscontinuity(track int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &m.states[track]
	if !st.pendingDiscontinuity {
		return NoDiscontinuity
	}
	st.pendingDiscontinuity = false
	return m.lastSeekUs
}

func (m *Memory) ReadData(track int, _ int64, formatHolder *media.FormatHolder, sampleHolder *media.SampleHolder) (ReadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &m.states[track]
	if st.pendingDiscontinuity {
		return NothingRead, nil
	}

	t := m.tracks[track]
	if want := m.formats[track][st.next]; !want.Equal(st.formatSent) {
		formatHolder.Format = want
		formatHolder.DrmInitData = t.DrmInitData
		st.formatSent = want
		return FormatRead, nil
	}

	if st.next >= len(t.Samples) {
		return EndOfStream, nil
	}
	if sampleHolder == nil {
		return NothingRead, nil
	}

	s := t.Samples[st.next]
	if s.TimeUs >= m.availableUs {
		return NothingRead, nil
	}

	if _, err := sampleHolder.Write(s.Data); err != nil {
		return NothingRead, err
	}
	sampleHolder.TimeUs = s.TimeUs
	sampleHolder.Flags = s.Flags
	if s.TimeUs < m.lastSeekUs {
		sampleHolder.Flags |= media.FlagDecodeOnly
	}
	if s.CryptoInfo != nil {
		sampleHolder.CryptoInfo = *s.CryptoInfo
	}
	st.next++

	return SampleRead, nil
}

func (m *Memory) SeekToUs(positionUs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seekCount++
	m.lastSeekUs = positionUs
	for i := range m.states {
		st := &m.states[i]
		if !st.enabled {
			continue
		}
		st.next = m.syncIndex(i, positionUs)
		st.pendingDiscontinuity = true
	}
}

func (m *Memory) BufferedPositionUs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.availableUs == math.MaxInt64 {
		return media.EndOfTrackUs
	}

	lastUs := media.UnknownTimeUs
	for i, st := range m.states {
		if !st.enabled || len(m.tracks[i].Samples) == 0 {
			continue
		}
		lastUs = max(lastUs, lo.LastOrEmpty(m.tracks[i].Samples).TimeUs)
	}
	if m.availableUs > lastUs {
		return media.EndOfTrackUs
	}
	return m.availableUs
}

func (m *Memory) MaybeThrowError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Memory) Release() {
	if !m.refs.Release() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepared = false
	m.states = make([]memoryTrackState, len(m.tracks))
}

// syncIndex returns the index of the last sync sample at or before positionUs.
func (m *Memory) syncIndex(track int, positionUs int64) int {
	index := 0
	for i, s := range m.tracks[track].Samples {
		if s.TimeUs > positionUs {
			break
		}
		if s.Flags&media.FlagSync != 0 {
			index = i
		}
	}
	return index
}
