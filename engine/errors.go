package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrReleased is returned by operations on an engine that was released.
	ErrReleased = errors.New("engine released")
	// ErrMultipleMediaClocks is returned when two enabled renderers both expose a media clock.
	ErrMultipleMediaClocks = errors.New("more than one enabled renderer exposes a media clock")
)

// PlaybackError is reported for every error that ends a playback attempt. CaughtAtTopLevel is set when
// the error is a fault recovered in the engine loop rather than one returned by a component.
type PlaybackError struct {
	Err              error
	CaughtAtTopLevel bool
}

func (e *PlaybackError) Error() string {
	if e.CaughtAtTopLevel {
		return fmt.Sprintf("playback: unexpected fault: %v", e.Err)
	}
	return fmt.Sprintf("playback: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// recovered turns a recovered panic value into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
