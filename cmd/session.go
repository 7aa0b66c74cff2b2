package cmd

import (
	"io"
	"sync"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/codec/mpeg"
	"github.com/anisan-cli/reelplay/config"
	"github.com/anisan-cli/reelplay/loadcontrol"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/mp4source"
	"github.com/anisan-cli/reelplay/player"
	"github.com/anisan-cli/reelplay/renderer"
	"github.com/anisan-cli/reelplay/sink"
	"github.com/anisan-cli/reelplay/source"
	"github.com/samber/lo"
)

// compressedVideoName is the decoder standing in for compressed video, which reelplay has no decoder
// for. Frames are released on time but carry the undecoded bitstream.
const compressedVideoName = "reelplay.passthrough.compressed"

// newRegistry returns the decoders available to playback sessions.
func newRegistry() *codec.Registry {
	registry := codec.NewRegistry()
	mpeg.Register(registry)
	registry.Register(codec.Entry{
		Name:         compressedVideoName,
		MimeTypes:    []string{media.MimeVideoH264, media.MimeVideoH265},
		Capabilities: codec.Capabilities{Adaptive: true},
		New: func() codec.Session {
			return codec.NewPassthrough(compressedVideoName, codec.PassthroughOptions{})
		},
	})
	return registry
}

// sessionOptions describe the media of a playback session and where it goes.
type sessionOptions struct {
	URI       string
	Synthetic bool
	// PCM receives the played audio, if set.
	PCM io.Writer
	// OnCues is called with the displayed text whenever it changes.
	OnCues func(cues []string)
	// Listener is registered before preparation starts.
	Listener *player.Listener
}

// captionOutput keeps the displayed cues and forwards them.
type captionOutput struct {
	sink.Text
	onCues func(cues []string)
}

func (c *captionOutput) OnCues(cues []renderer.Cue) {
	c.Text.OnCues(cues)
	if c.onCues != nil {
		c.onCues(lo.Map(cues, func(cue renderer.Cue, _ int) string { return cue.Text }))
	}
}

// session is one prepared player with its renderers.
type session struct {
	player   *player.Player
	video    *renderer.Video
	audio    *renderer.Audio
	text     *renderer.Text
	surface  *sink.Surface
	captions *captionOutput

	releaseOnce sync.Once
	releaseErr  error
}

// newSession builds the renderers for opts and starts preparing them. Playback stays paused until
// the caller sets play when ready.
func newSession(opts sessionOptions) *session {
	registry := newRegistry()
	listener := rendererListener()
	decoderOptions := renderer.DecoderOptions{
		Selector: registry,
		Factory:  registry,
		Clock:    clock.System,
		Listener: listener,
	}

	var sampleSource source.SampleSource
	if opts.Synthetic {
		sampleSource = source.NewSynthetic(source.DefaultSyntheticOptions())
	} else {
		lcOptions := config.LoadControlOptions()
		lcOptions.OnLoadingChanged = func(loading bool) {
			log.Component("loadcontrol").Debugf("loading %t", loading)
		}
		control := loadcontrol.NewDefault(loadcontrol.NewDefaultAllocator(config.SegmentSize()), lcOptions)

		mp4Options := mp4source.DefaultOptions(control)
		mp4Options.BufferSizeContribution = config.BufferSizeContribution()
		sampleSource = mp4source.New(opts.URI, mp4Options)
	}

	frameRelease := config.FrameReleaseOptions()
	s := &session{
		surface:  sink.NewSurface(),
		captions: &captionOutput{onCues: opts.OnCues},
	}

	s.video = renderer.NewVideo(renderer.VideoOptions{
		DecoderOptions:           decoderOptions,
		AllowedJoiningTime:       config.JoiningTime(),
		MaxDroppedFramesToNotify: config.MaxDroppedFramesToNotify(),
		FrameRelease:             frameRelease,
		Surface:                  s.surface,
	}, sampleSource)
	s.audio = renderer.NewAudio(sink.NewAudio(sink.AudioOptions{Output: opts.PCM}), decoderOptions, sampleSource)
	s.text = renderer.NewText(s.captions, sampleSource)

	playerOptions := config.PlayerOptions()
	playerOptions.PlayWhenReady = false
	s.player = player.New(len(slotNames), playerOptions)
	if opts.Listener != nil {
		s.player.AddListener(opts.Listener)
	}
	s.player.Prepare(s.video, s.audio, s.text)
	return s
}

// rendererListener logs renderer diagnostics.
func rendererListener() *renderer.EventListener {
	logger := log.Component("renderer")
	return &renderer.EventListener{
		OnDecoderInitialized: func(name string, took time.Duration) {
			logger.Infof("decoder %s initialized in %s", name, took)
		},
		OnDecoderInitError: func(err *codec.DecoderInitError) {
			logger.Errorf("decoder init: %v", err)
		},
		OnCryptoError: func(err error) {
			logger.Errorf("crypto: %v", err)
		},
		OnAudioUnderrun: func(bufferSize int, bufferSizeMs int64, elapsed time.Duration) {
			logger.Warnf("audio underrun: %d bytes (%dms) buffered, %s since last feed", bufferSize, bufferSizeMs, elapsed)
		},
		OnAudioSinkError: func(err error) {
			logger.Errorf("audio sink: %v", err)
		},
		OnVideoSizeChanged: func(width, height, rotation int, ratio float32) {
			logger.Infof("video size %dx%d rotated %d, pixel ratio %.2f", width, height, rotation, ratio)
		},
		OnDrawnToSurface: func(codec.Surface) {
			logger.Debug("first frame drawn")
		},
		OnDroppedFrames: func(count int, elapsed time.Duration) {
			logger.Warnf("dropped %d frames in %s", count, elapsed)
		},
	}
}

// release stops playback and frees every resource of the session.
func (s *session) release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.player.Release()
		log.WithFields(map[string]any{
			"frames": s.surface.Frames(),
		}).Info("session released")
	})
	return s.releaseErr
}

