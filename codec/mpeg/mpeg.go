// Package mpeg provides a software decoder session for MPEG-1/2 audio layer III.
package mpeg

import (
	"bytes"
	"io"

	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/hajimehoshi/go-mp3"
)

// Name is the registered decoder name.
const Name = "reelplay.mpeg"

// The decoder always produces interleaved 16-bit stereo.
const (
	outputChannels  = 2
	bytesPerFrame   = outputChannels * 2
	samplesPerFrame = 1152
)

// Register adds the decoder to registry.
func Register(registry *codec.Registry) {
	registry.Register(codec.Entry{
		Name:      Name,
		MimeTypes: []string{media.MimeAudioMPEG},
		New: func() codec.Session {
			return New(codec.PassthroughOptions{})
		},
	})
}

// Session decodes one MPEG audio frame per input buffer into PCM output buffers.
type Session struct {
	*codec.Passthrough

	input      *media.Format
	sampleRate int

	// Layer III frames may borrow bits from their predecessor, so each frame is decoded together with
	// the previous one and only the trailing PCM is kept.
	previous       []byte
	previousPCMLen int
}

// New returns an unconfigured session.
func New(opts codec.PassthroughOptions) *Session {
	return &Session{Passthrough: codec.NewPassthrough(Name, opts)}
}

func (s *Session) Configure(format *media.Format, surface codec.Surface, crypto codec.Crypto) error {
	s.input = format
	s.sampleRate = format.SampleRate
	if err := s.Passthrough.Configure(format, surface, crypto); err != nil {
		return err
	}
	s.Passthrough.SetOutputFormat(s.outputFormat())
	return nil
}

func (s *Session) outputFormat() *media.Format {
	return media.NewAudioFormat(s.input.TrackID, media.MimeAudioRaw, media.NoValue, media.NoValue,
		s.input.DurationUs, outputChannels, s.sampleRate, nil, s.input.Language)
}

func (s *Session) QueueInputBuffer(index int, data []byte, presentationTimeUs int64, flags codec.BufferFlags) error {
	if flags&(codec.BufferFlagEndOfStream|codec.BufferFlagCodecConfig) != 0 || len(data) == 0 {
		return s.Passthrough.QueueInputBuffer(index, data, presentationTimeUs, flags)
	}
	return s.Passthrough.QueueInputBuffer(index, s.decode(data), presentationTimeUs, flags)
}

func (s *Session) QueueSecureInputBuffer(int, []byte, *media.CryptoInfo, int64, codec.BufferFlags) error {
	return &codec.CryptoError{Code: 1, Err: codec.ErrNoCrypto}
}

func (s *Session) decode(frame []byte) []byte {
	joined := append(bytes.Clone(s.previous), frame...)
	s.previous = bytes.Clone(frame)

	pcm, rate, err := decodeAll(joined)
	if err != nil || len(pcm) <= s.previousPCMLen {
		log.Debugf("mpeg: substituting silence for undecodable frame: %v", err)
		s.previousPCMLen = 0
		return make([]byte, samplesPerFrame*bytesPerFrame)
	}

	if rate != s.sampleRate && rate > 0 {
		s.sampleRate = rate
		s.Passthrough.SetOutputFormat(s.outputFormat())
	}

	current := pcm[s.previousPCMLen:]
	s.previousPCMLen = len(current)
	return current
}

func (s *Session) Flush() error {
	s.previous = nil
	s.previousPCMLen = 0
	return s.Passthrough.Flush()
}

func (s *Session) Release() error {
	s.previous = nil
	s.previousPCMLen = 0
	return s.Passthrough.Release()
}

func decodeAll(data []byte) ([]byte, int, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, err
	}
	return pcm, d.SampleRate(), nil
}
