package cmd

import (
	"encoding/json"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/anisan-cli/reelplay/engine"
	"github.com/invopop/jsonschema"
)

// Event names written in json mode.
const (
	eventState    = "state"
	eventPosition = "position"
	eventCues     = "cues"
	eventError    = "error"
)

// eventLine is one line of json mode output.
type eventLine struct {
	Time               time.Time `json:"time"`
	Event              string    `json:"event" jsonschema:"enum=state,enum=position,enum=cues,enum=error"`
	State              string    `json:"state,omitempty" jsonschema:"enum=idle,enum=preparing,enum=buffering,enum=ready,enum=ended"`
	PlayWhenReady      *bool     `json:"play_when_ready,omitempty"`
	PositionMs         *int64    `json:"position_ms,omitempty"`
	DurationMs         *int64    `json:"duration_ms,omitempty"`
	BufferedPercentage *int      `json:"buffered_percentage,omitempty"`
	Error              string    `json:"error,omitempty"`
	Cues               []string  `json:"cues,omitempty"`
}

// eventWriter encodes event lines from the engine and ticker goroutines.
type eventWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	now     func() time.Time
}

func newEventWriter(w io.Writer) *eventWriter {
	return &eventWriter{encoder: json.NewEncoder(w), now: time.Now}
}

func (e *eventWriter) write(line eventLine) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line.Time = e.now().UTC()
	_ = e.encoder.Encode(line)
}

func (e *eventWriter) state(playWhenReady bool, state engine.State) {
	e.write(eventLine{Event: eventState, State: state.String(), PlayWhenReady: &playWhenReady})
}

func (e *eventWriter) position(positionMs, durationMs int64, bufferedPercentage int) {
	e.write(eventLine{
		Event:              eventPosition,
		PositionMs:         &positionMs,
		DurationMs:         &durationMs,
		BufferedPercentage: &bufferedPercentage,
	})
}

func (e *eventWriter) cues(cues []string) {
	e.write(eventLine{Event: eventCues, Cues: cues})
}

func (e *eventWriter) error(err error) {
	e.write(eventLine{Event: eventError, Error: err.Error()})
}

// eventSchema describes the json mode output.
func eventSchema() *jsonschema.Schema {
	reflector := new(jsonschema.Reflector)
	reflector.Anonymous = true
	reflector.Namer = func(t reflect.Type) string {
		return "reelplay." + t.Name()
	}
	return reflector.Reflect(&eventLine{})
}
