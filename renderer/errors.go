package renderer

import (
	"errors"
	"fmt"
)

var (
	ErrDrmSessionManagerRequired = errors.New("media requires a drm session manager")
	ErrUnknownMessage            = errors.New("unknown message")
	ErrInvalidPayload            = errors.New("invalid message payload")
)

// SinkError is returned when the audio sink fails to initialize or write.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("audio sink %s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
