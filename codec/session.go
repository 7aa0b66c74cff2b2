// Package codec defines the decoder session contract driven by the decode loop, decoder selection,
// and a registry of available decoders.
package codec

import "github.com/anisan-cli/reelplay/media"

// BufferFlags annotate input and output buffers.
type BufferFlags int

const (
	BufferFlagKeyFrame BufferFlags = 1 << iota
	BufferFlagCodecConfig
	BufferFlagEndOfStream
)

// Status codes returned by Session.DequeueOutputBuffer instead of a buffer index.
const (
	InfoTryAgainLater        = -1
	InfoOutputFormatChanged  = -2
	InfoOutputBuffersChanged = -3
)

// BufferInfo describes a dequeued output buffer.
type BufferInfo struct {
	Offset             int
	Size               int
	PresentationTimeUs int64
	Flags              BufferFlags
}

// Surface receives the video frames a session renders.
type Surface interface {
	RenderFrame(data []byte, presentationTimeUs, releaseTimeNs int64)
}

// Crypto decrypts protected samples for a session.
type Crypto interface {
	RequiresSecureDecoder(mimeType string) bool
	Decrypt(data []byte, info *media.CryptoInfo) ([]byte, error)
}

// Session is a decoder instance. Input and output buffers are addressed by index; dequeue calls never
// block and report InfoTryAgainLater (or -1 for input) when nothing is available.
type Session interface {
	Name() string
	Configure(format *media.Format, surface Surface, crypto Crypto) error
	Start() error

	DequeueInputBuffer() int
	QueueInputBuffer(index int, data []byte, presentationTimeUs int64, flags BufferFlags) error
	QueueSecureInputBuffer(index int, data []byte, info *media.CryptoInfo, presentationTimeUs int64, flags BufferFlags) error

	DequeueOutputBuffer(info *BufferInfo) int
	OutputBuffer(index int) []byte
	OutputFormat() *media.Format
	// ReleaseOutputBuffer returns a buffer to the session, rendering it to the surface at
	// releaseTimeNs when render is set.
	ReleaseOutputBuffer(index int, render bool, releaseTimeNs int64) error

	Flush() error
	Stop() error
	Release() error
}
