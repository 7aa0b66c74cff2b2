package renderer

import (
	"fmt"

	"github.com/anisan-cli/reelplay/codec"
)

// Message types understood by the renderers.
const (
	// MsgSetSurface carries a codec.Surface, or nil, for the video renderer.
	MsgSetSurface = iota + 1
	// MsgSetVolume carries a float32 gain for the audio renderer.
	MsgSetVolume
)

func surfacePayload(payload any) (codec.Surface, error) {
	if payload == nil {
		return nil, nil
	}
	surface, ok := payload.(codec.Surface)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a surface", ErrInvalidPayload, payload)
	}
	return surface, nil
}

func volumePayload(payload any) (float32, error) {
	switch v := payload.(type) {
	case float32:
		return v, nil
	case float64:
		return float32(v), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a volume", ErrInvalidPayload, payload)
	}
}
