// Package renderer implements the track renderers driven by the playback engine: a state machine shared
// by every renderer, the glue that reads one track from a sample source, a reusable decoder feed/drain
// loop, and the audio, video and text variants built from them.
package renderer

import (
	"fmt"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/media"
)

// State of a renderer. Transitions are driven by the engine only.
type State int

const (
	StateUnprepared State = iota
	StatePrepared
	StateEnabled
	StateStarted
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnprepared:
		return "unprepared"
	case StatePrepared:
		return "prepared"
	case StateEnabled:
		return "enabled"
	case StateStarted:
		return "started"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind tags the renderer variants.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindText
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "other"
	}
}

// MessageHandler is implemented by every component that accepts messages. HandleMessage is only ever
// invoked on the engine goroutine.
type MessageHandler interface {
	HandleMessage(msgType int, payload any) error
}

// Renderer renders one track. Prepare, Enable, Start, Stop, Disable and Release move the renderer through
// its states and panic when called from the wrong state.
type Renderer interface {
	MessageHandler

	Kind() Kind
	State() State

	// Prepare reports whether preparation completed. It is called repeatedly while unprepared.
	Prepare(positionUs int64) (bool, error)
	// Enable binds track and seeds the position. joining is set when playback is already in progress.
	Enable(track int, positionUs int64, joining bool) error
	Start() error
	Stop() error
	Disable() error
	Release() error

	// TrackCount and Format describe the tracks the renderer handles. Only valid once prepared.
	TrackCount() int
	Format(track int) *media.Format

	// DoSomeWork makes rendering progress without blocking.
	DoSomeWork(positionUs, elapsedRealtimeUs int64) error
	IsReady() bool
	IsEnded() bool

	// DurationUs returns the duration of the media, media.UnknownTimeUs, or media.MatchLongestUs for
	// renderers that play for as long as their siblings.
	DurationUs() int64
	// BufferedPositionUs returns how far the enabled track is buffered, media.EndOfTrackUs or
	// media.UnknownTimeUs.
	BufferedPositionUs() int64
	// SeekTo moves an enabled renderer to positionUs.
	SeekTo(positionUs int64) error
	// MaybeThrowError returns an error that stops the renderer from making progress, if any.
	MaybeThrowError() error

	// MediaClock returns the clock the renderer drives playback with, or nil.
	MediaClock() clock.MediaClock
}

var (
	_ Renderer         = (*Audio)(nil)
	_ Renderer         = (*Video)(nil)
	_ Renderer         = (*Text)(nil)
	_ clock.MediaClock = (*Audio)(nil)
)
