package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Format describes one track. Treat a Format as immutable once it has been handed to a renderer;
// the With* helpers return modified copies.
type Format struct {
	TrackID      string
	MimeType     string
	Bitrate      int
	MaxInputSize int
	DurationUs   int64

	Width                 int
	Height                int
	RotationDegrees       int
	PixelWidthHeightRatio float32
	MaxWidth              int
	MaxHeight             int

	ChannelCount int
	SampleRate   int

	Language string

	InitializationData [][]byte

	Adaptive bool
}

// NewVideoFormat returns a video track format. Unknown integer attributes should be NoValue.
func NewVideoFormat(trackID, mime string, bitrate, maxInputSize int, durationUs int64, width, height int, initData [][]byte) *Format {
	return &Format{
		TrackID:               trackID,
		MimeType:              mime,
		Bitrate:               bitrate,
		MaxInputSize:          maxInputSize,
		DurationUs:            durationUs,
		Width:                 width,
		Height:                height,
		PixelWidthHeightRatio: 1,
		MaxWidth:              NoValue,
		MaxHeight:             NoValue,
		ChannelCount:          NoValue,
		SampleRate:            NoValue,
		InitializationData:    initData,
	}
}

// NewAudioFormat returns an audio track format.
func NewAudioFormat(trackID, mime string, bitrate, maxInputSize int, durationUs int64, channels, sampleRate int, initData [][]byte, language string) *Format {
	return &Format{
		TrackID:               trackID,
		MimeType:              mime,
		Bitrate:               bitrate,
		MaxInputSize:          maxInputSize,
		DurationUs:            durationUs,
		Width:                 NoValue,
		Height:                NoValue,
		PixelWidthHeightRatio: NoValue,
		MaxWidth:              NoValue,
		MaxHeight:             NoValue,
		ChannelCount:          channels,
		SampleRate:            sampleRate,
		Language:              language,
		InitializationData:    initData,
	}
}

// NewTextFormat returns a text track format.
func NewTextFormat(trackID, mime string, bitrate int, durationUs int64, language string) *Format {
	return &Format{
		TrackID:               trackID,
		MimeType:              mime,
		Bitrate:               bitrate,
		MaxInputSize:          NoValue,
		DurationUs:            durationUs,
		Width:                 NoValue,
		Height:                NoValue,
		PixelWidthHeightRatio: NoValue,
		MaxWidth:              NoValue,
		MaxHeight:             NoValue,
		ChannelCount:          NoValue,
		SampleRate:            NoValue,
		Language:              language,
	}
}

func (f *Format) clone() *Format {
	c := *f
	if f.InitializationData != nil {
		c.InitializationData = make([][]byte, len(f.InitializationData))
		for i, d := range f.InitializationData {
			c.InitializationData[i] = bytes.Clone(d)
		}
	}
	return &c
}

// WithMaxInputSize returns a copy with a different maximum input buffer size.
func (f *Format) WithMaxInputSize(size int) *Format {
	c := f.clone()
	c.MaxInputSize = size
	return c
}

// WithDurationUs returns a copy with a different duration.
func (f *Format) WithDurationUs(durationUs int64) *Format {
	c := f.clone()
	c.DurationUs = durationUs
	return c
}

// WithMaxVideoSize returns a copy advertising the largest dimensions an adaptive stream may switch to.
func (f *Format) WithMaxVideoSize(maxWidth, maxHeight int) *Format {
	c := f.clone()
	c.MaxWidth = maxWidth
	c.MaxHeight = maxHeight
	return c
}

// WithAdaptive returns a copy with the adaptive flag set.
func (f *Format) WithAdaptive(adaptive bool) *Format {
	c := f.clone()
	c.Adaptive = adaptive
	return c
}

// WithLanguage returns a copy with a different language tag.
func (f *Format) WithLanguage(language string) *Format {
	c := f.clone()
	c.Language = language
	return c
}

// Equal reports whether two formats carry identical attributes.
func (f *Format) Equal(other *Format) bool {
	if f == other {
		return true
	}
	if f == nil || other == nil {
		return false
	}

	if f.TrackID != other.TrackID ||
		f.MimeType != other.MimeType ||
		f.Bitrate != other.Bitrate ||
		f.MaxInputSize != other.MaxInputSize ||
		f.DurationUs != other.DurationUs ||
		f.Width != other.Width ||
		f.Height != other.Height ||
		f.RotationDegrees != other.RotationDegrees ||
		f.PixelWidthHeightRatio != other.PixelWidthHeightRatio ||
		f.MaxWidth != other.MaxWidth ||
		f.MaxHeight != other.MaxHeight ||
		f.ChannelCount != other.ChannelCount ||
		f.SampleRate != other.SampleRate ||
		f.Language != other.Language ||
		f.Adaptive != other.Adaptive ||
		len(f.InitializationData) != len(other.InitializationData) {
		return false
	}

	for i := range f.InitializationData {
		if !bytes.Equal(f.InitializationData[i], other.InitializationData[i]) {
			return false
		}
	}

	return true
}

// Hash returns a value consistent with Equal, suitable as a map key.
func (f *Format) Hash() uint64 {
	h := fnv.New64a()
	writeInt := func(v int64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		_, _ = h.Write(b[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		_, _ = h.Write([]byte(s))
	}

	writeString(f.TrackID)
	writeString(f.MimeType)
	writeString(f.Language)
	for _, v := range []int{
		f.Bitrate, f.MaxInputSize, f.Width, f.Height, f.RotationDegrees,
		f.MaxWidth, f.MaxHeight, f.ChannelCount, f.SampleRate,
	} {
		writeInt(int64(v))
	}
	writeInt(f.DurationUs)
	writeInt(int64(math.Float32bits(f.PixelWidthHeightRatio)))
	if f.Adaptive {
		writeInt(1)
	}
	for _, d := range f.InitializationData {
		writeInt(int64(len(d)))
		_, _ = h.Write(d)
	}

	return h.Sum64()
}

func (f *Format) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s", f.MimeType, f.TrackID)
	switch {
	case IsVideo(f.MimeType):
		fmt.Fprintf(&b, " %dx%d", f.Width, f.Height)
	case IsAudio(f.MimeType):
		fmt.Fprintf(&b, " %dch %dHz", f.ChannelCount, f.SampleRate)
	}
	if f.Language != "" {
		fmt.Fprintf(&b, " %s", f.Language)
	}
	if f.Bitrate > 0 {
		fmt.Fprintf(&b, " %dbps", f.Bitrate)
	}
	b.WriteString("]")
	return b.String()
}
