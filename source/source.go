// Package source defines the pull-based sample source contract consumed by renderers, together with
// an in-memory implementation.
package source

import (
	"math"

	"github.com/anisan-cli/reelplay/media"
)

// ReadResult is the outcome of Reader.ReadData.
type ReadResult int

const (
	// NothingRead means no sample or format is available yet.
	NothingRead ReadResult = iota
	// SampleRead means the sample holder was filled.
	SampleRead
	// FormatRead means the format holder was filled and the next read will return samples in that format.
	FormatRead
	// EndOfStream means the track has no more samples.
	EndOfStream
)

func (r ReadResult) String() string {
	switch r {
	case NothingRead:
		return "nothing"
	case SampleRead:
		return "sample"
	case FormatRead:
		return "format"
	case EndOfStream:
		return "end of stream"
	default:
		return "unknown"
	}
}

// NoDiscontinuity is returned by Reader.ReadDiscontinuity when there is nothing to report.
const NoDiscontinuity int64 = math.MinInt64

// SampleSource produces readers over one piece of media. Every consumer registers for its own
// reference; the source releases its resources once every reference was released.
type SampleSource interface {
	Register() Reader
}

// Reader exposes the tracks of a source. Methods other than MaybeThrowError never block.
type Reader interface {
	// Prepare starts preparation and reports whether the tracks are known. It is called repeatedly
	// until it returns true.
	Prepare(positionUs int64) (bool, error)

	// TrackCount returns the number of tracks. Only valid after preparation.
	TrackCount() int

	// Format returns the format of a track. Only valid after preparation.
	Format(track int) *media.Format

	// Enable starts delivering a track from positionUs.
	Enable(track int, positionUs int64)

	// Disable stops delivering a track.
	Disable(track int)

	// ContinueBuffering lets the source make loading progress and reports whether data is available
	// for an enabled track.
	ContinueBuffering(track int, positionUs int64) bool

	// ReadDiscontinuity returns the position the track jumped to, or NoDiscontinuity. Renderers must
	// drain a pending discontinuity before reading data.
	ReadDiscontinuity(track int) int64

	// ReadData reads the next format change or sample of an enabled track. sampleHolder may be nil,
	// in which case only a format change can be read.
	ReadData(track int, positionUs int64, formatHolder *media.FormatHolder, sampleHolder *media.SampleHolder) (ReadResult, error)

	// SeekToUs moves every enabled track to positionUs. Each enabled track then reports a discontinuity.
	SeekToUs(positionUs int64)

	// BufferedPositionUs returns how far the enabled tracks are loaded, media.EndOfTrackUs if fully
	// loaded, or media.UnknownTimeUs.
	BufferedPositionUs() int64

	// MaybeThrowError returns an error once loading failed beyond recovery.
	MaybeThrowError() error

	// Release drops this reader's reference to the source.
	Release()
}
