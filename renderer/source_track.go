package renderer

import (
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

// sourceTrack reads the single enabled track of a renderer from one of several readers. Only tracks the
// renderer handles are exposed, renumbered from zero.
type sourceTrack struct {
	readers []source.Reader
	handles func(format *media.Format) (bool, error)

	handledReaders []int
	handledTracks  []int
	durationUs     int64

	enabled      source.Reader
	enabledTrack int
}

func newSourceTrack(handles func(*media.Format) (bool, error), sources ...source.SampleSource) sourceTrack {
	readers := make([]source.Reader, len(sources))
	for i, s := range sources {
		readers[i] = s.Register()
	}
	return sourceTrack{readers: readers, handles: handles}
}

// prepareSources prepares every reader and collects the handled tracks once all of them are ready.
func (t *sourceTrack) prepareSources(positionUs int64) (bool, error) {
	allPrepared := true
	for _, r := range t.readers {
		prepared, err := r.Prepare(positionUs)
		if err != nil {
			return false, err
		}
		allPrepared = allPrepared && prepared
	}
	if !allPrepared {
		return false, nil
	}

	t.handledReaders = t.handledReaders[:0]
	t.handledTracks = t.handledTracks[:0]
	t.durationUs = 0

	for i, r := range t.readers {
		for j := range r.TrackCount() {
			format := r.Format(j)
			ok, err := t.handles(format)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}

			t.handledReaders = append(t.handledReaders, i)
			t.handledTracks = append(t.handledTracks, j)

			switch {
			case t.durationUs == media.UnknownTimeUs:
			case format.DurationUs == media.UnknownTimeUs:
				t.durationUs = media.UnknownTimeUs
			default:
				t.durationUs = max(t.durationUs, format.DurationUs)
			}
		}
	}

	return true, nil
}

func (t *sourceTrack) TrackCount() int {
	return len(t.handledTracks)
}

func (t *sourceTrack) Format(track int) *media.Format {
	return t.readers[t.handledReaders[track]].Format(t.handledTracks[track])
}

func (t *sourceTrack) DurationUs() int64 {
	return t.durationUs
}

func (t *sourceTrack) BufferedPositionUs() int64 {
	if t.enabled == nil {
		return media.UnknownTimeUs
	}
	return t.enabled.BufferedPositionUs()
}

// MaybeThrowError reports the error of the enabled reader, or of any reader while none is enabled.
func (t *sourceTrack) MaybeThrowError() error {
	if t.enabled != nil {
		return t.enabled.MaybeThrowError()
	}
	for _, r := range t.readers {
		if err := r.MaybeThrowError(); err != nil {
			return err
		}
	}
	return nil
}

func (t *sourceTrack) enableTrack(track int, positionUs int64) {
	t.enabled = t.readers[t.handledReaders[track]]
	t.enabledTrack = t.handledTracks[track]
	t.enabled.Enable(t.enabledTrack, positionUs)
}

func (t *sourceTrack) disableTrack() {
	t.enabled.Disable(t.enabledTrack)
	t.enabled = nil
}

func (t *sourceTrack) continueBuffering(positionUs int64) bool {
	return t.enabled.ContinueBuffering(t.enabledTrack, positionUs)
}

// checkDiscontinuity drains a pending discontinuity, invoking onDiscontinuity with its position. It
// returns the position rendering continues from.
func (t *sourceTrack) checkDiscontinuity(positionUs int64, onDiscontinuity func(int64) error) (int64, error) {
	discontinuityUs := t.enabled.ReadDiscontinuity(t.enabledTrack)
	if discontinuityUs == source.NoDiscontinuity {
		return positionUs, nil
	}
	return discontinuityUs, onDiscontinuity(discontinuityUs)
}

// sync is run at the start of every work cycle. It lets the source buffer and handles discontinuities.
func (t *sourceTrack) sync(positionUs int64, onDiscontinuity func(int64) error) (int64, bool, error) {
	ready := t.continueBuffering(positionUs)
	positionUs, err := t.checkDiscontinuity(positionUs, onDiscontinuity)
	return positionUs, ready, err
}

func (t *sourceTrack) seek(positionUs int64, onDiscontinuity func(int64) error) error {
	t.enabled.SeekToUs(positionUs)
	_, err := t.checkDiscontinuity(positionUs, onDiscontinuity)
	return err
}

func (t *sourceTrack) readData(positionUs int64, formatHolder *media.FormatHolder, sampleHolder *media.SampleHolder) (source.ReadResult, error) {
	return t.enabled.ReadData(t.enabledTrack, positionUs, formatHolder, sampleHolder)
}

func (t *sourceTrack) releaseSources() {
	for _, r := range t.readers {
		r.Release()
	}
}
