package renderer

import (
	"time"

	"github.com/anisan-cli/reelplay/codec"
)

// EventListener receives renderer events on the engine goroutine. Callbacks must return quickly and
// may be left nil.
type EventListener struct {
	OnDecoderInitialized func(decoderName string, initializationDuration time.Duration)
	OnDecoderInitError   func(err *codec.DecoderInitError)
	OnCryptoError        func(err error)

	// OnAudioUnderrun reports that the sink ran out of data while playing.
	OnAudioUnderrun    func(bufferSize int, bufferSizeMs int64, elapsedSinceLastFeed time.Duration)
	OnAudioSinkError   func(err error)
	OnVideoSizeChanged func(width, height, rotationDegrees int, pixelWidthHeightRatio float32)
	OnDrawnToSurface   func(surface codec.Surface)
	OnDroppedFrames    func(count int, elapsed time.Duration)
}

func (l *EventListener) decoderInitialized(name string, d time.Duration) {
	if l != nil && l.OnDecoderInitialized != nil {
		l.OnDecoderInitialized(name, d)
	}
}

func (l *EventListener) decoderInitError(err *codec.DecoderInitError) {
	if l != nil && l.OnDecoderInitError != nil {
		l.OnDecoderInitError(err)
	}
}

func (l *EventListener) cryptoError(err error) {
	if l != nil && l.OnCryptoError != nil {
		l.OnCryptoError(err)
	}
}

func (l *EventListener) audioUnderrun(bufferSize int, bufferSizeMs int64, elapsed time.Duration) {
	if l != nil && l.OnAudioUnderrun != nil {
		l.OnAudioUnderrun(bufferSize, bufferSizeMs, elapsed)
	}
}

func (l *EventListener) audioSinkError(err error) {
	if l != nil && l.OnAudioSinkError != nil {
		l.OnAudioSinkError(err)
	}
}

func (l *EventListener) videoSizeChanged(width, height, rotation int, ratio float32) {
	if l != nil && l.OnVideoSizeChanged != nil {
		l.OnVideoSizeChanged(width, height, rotation, ratio)
	}
}

func (l *EventListener) drawnToSurface(surface codec.Surface) {
	if l != nil && l.OnDrawnToSurface != nil {
		l.OnDrawnToSurface(surface)
	}
}

func (l *EventListener) droppedFrames(count int, elapsed time.Duration) {
	if l != nil && l.OnDroppedFrames != nil {
		l.OnDroppedFrames(count, elapsed)
	}
}
