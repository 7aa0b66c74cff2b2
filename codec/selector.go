package codec

import "github.com/samber/mo"

// Capabilities describe what a decoder supports and which of its known defects the decode loop must
// work around. They are fixed per decoder and handed to the renderer on selection.
type Capabilities struct {
	// Adaptive decoders accept resolution changes without reconfiguration.
	Adaptive bool
	// Secure decoders accept protected input.
	Secure bool

	// NeedsFlushWorkaround decoders must be recreated instead of flushed.
	NeedsFlushWorkaround bool
	// NeedsEosFlushWorkaround decoders must be recreated when flushed after end of stream.
	NeedsEosFlushWorkaround bool
	// NeedsEosPropagationWorkaround decoders may never output end of stream, so it is assumed as soon
	// as end of stream was queued and no more output is available.
	NeedsEosPropagationWorkaround bool
}

// DecoderInfo names a decoder and its capabilities.
type DecoderInfo struct {
	Name         string
	Capabilities Capabilities
}

// Selector picks a decoder for a mime type.
type Selector interface {
	// DecoderInfo returns the decoder to use for mimeType, or none if no decoder fits.
	DecoderInfo(mimeType string, requiresSecureDecoder bool) (mo.Option[DecoderInfo], error)
}

// Factory instantiates decoders by name.
type Factory interface {
	CreateSession(name string) (Session, error)
}
