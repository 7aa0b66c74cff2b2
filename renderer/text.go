package renderer

import (
	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

// Cue is one piece of timed text.
type Cue struct {
	Text    string
	StartUs int64
}

// TextOutput receives cues on the engine goroutine. A nil slice clears the displayed text.
type TextOutput interface {
	OnCues(cues []Cue)
}

// Text delivers timed text samples to a TextOutput as playback reaches them. Samples are passed through
// without decoding.
type Text struct {
	base
	sourceTrack

	output       TextOutput
	sample       *media.SampleHolder
	formatHolder media.FormatHolder
	format       *media.Format

	pending          *Cue
	inputStreamEnded bool
}

// NewText returns a text renderer reading from sources.
func NewText(output TextOutput, sources ...source.SampleSource) *Text {
	t := &Text{
		output: output,
		sample: media.NewSampleHolder(media.BufferReplacementNormal),
	}
	t.base = base{kind: KindText, hooks: t}
	t.sourceTrack = newSourceTrack(t.handlesFormat, sources...)
	return t
}

func (t *Text) handlesFormat(format *media.Format) (bool, error) {
	switch format.MimeType {
	case media.MimeTextPlain, media.MimeTextVTT:
		return true, nil
	default:
		return false, nil
	}
}

func (t *Text) MediaClock() clock.MediaClock {
	return nil
}

func (t *Text) doPrepare(positionUs int64) (bool, error) {
	return t.prepareSources(positionUs)
}

func (t *Text) onEnabled(track int, positionUs int64, _ bool) error {
	t.enableTrack(track, positionUs)
	return t.onDiscontinuity(positionUs)
}

func (t *Text) onStarted() error { return nil }
func (t *Text) onStopped() error { return nil }

func (t *Text) onDisabled() error {
	t.format = nil
	t.pending = nil
	t.output.OnCues(nil)
	t.disableTrack()
	return nil
}

func (t *Text) onReleased() error {
	t.releaseSources()
	return nil
}

func (t *Text) onDiscontinuity(int64) error {
	t.inputStreamEnded = false
	t.pending = nil
	t.sample.ClearData()
	t.output.OnCues(nil)
	return nil
}

func (t *Text) DoSomeWork(positionUs, _ int64) error {
	positionUs, _, err := t.sync(positionUs, t.onDiscontinuity)
	if err != nil {
		return err
	}

	for {
		if t.pending == nil {
			if t.inputStreamEnded {
				return nil
			}
			result, err := t.readData(positionUs, &t.formatHolder, t.sample)
			if err != nil {
				return err
			}
			switch result {
			case source.FormatRead:
				t.format = t.formatHolder.Format
				continue
			case source.SampleRead:
				t.pending = &Cue{Text: string(t.sample.Data[:t.sample.Size]), StartUs: t.sample.TimeUs}
				t.sample.ClearData()
			case source.EndOfStream:
				t.inputStreamEnded = true
				return nil
			default:
				return nil
			}
		}

		if t.pending.StartUs > positionUs {
			return nil
		}
		t.output.OnCues([]Cue{*t.pending})
		t.pending = nil
	}
}

func (t *Text) SeekTo(positionUs int64) error {
	return t.seek(positionUs, t.onDiscontinuity)
}

// IsReady is always true: missing text never stalls playback.
func (t *Text) IsReady() bool {
	return true
}

func (t *Text) IsEnded() bool {
	return t.inputStreamEnded && t.pending == nil
}

func (t *Text) HandleMessage(int, any) error {
	return nil
}
