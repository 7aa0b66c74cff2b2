package config

import (
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/key"
	"github.com/anisan-cli/reelplay/loadcontrol"
	"github.com/anisan-cli/reelplay/player"
	"github.com/spf13/viper"
)

func millis(k string) time.Duration {
	return time.Duration(viper.GetInt64(k)) * time.Millisecond
}

// PlayerOptions returns the configured engine thresholds.
func PlayerOptions() player.Options {
	return player.Options{
		Engine: engine.Options{
			MinBuffer:   millis(key.PlaybackMinBufferMs),
			MinRebuffer: millis(key.PlaybackMinRebufferMs),
			Clock:       clock.System,
		},
		PlayWhenReady: viper.GetBool(key.PlaybackPlayWhenReady),
	}
}

// JoiningTime returns how long a newly selected video track may take to show its first frame.
func JoiningTime() time.Duration {
	return millis(key.PlaybackJoiningTimeMs)
}

// LoadControlOptions returns the configured watermarks.
func LoadControlOptions() loadcontrol.Options {
	return loadcontrol.Options{
		LowWatermark:   millis(key.LoadControlLowWatermarkMs),
		HighWatermark:  millis(key.LoadControlHighWatermarkMs),
		LowBufferLoad:  viper.GetFloat64(key.LoadControlLowBufferLoad),
		HighBufferLoad: viper.GetFloat64(key.LoadControlHighBufferLoad),
	}
}

// SegmentSize returns the size of one allocation.
func SegmentSize() int {
	return viper.GetInt(key.LoadControlSegmentSize)
}

// BufferSizeContribution returns the number of bytes each loader may hold.
func BufferSizeContribution() int {
	return SegmentSize() * viper.GetInt(key.LoadControlBufferSegments)
}

// FrameReleaseOptions returns the configured frame release timing. Vsync snapping samples a ticker
// running at the configured refresh rate.
func FrameReleaseOptions() clock.FrameReleaseOptions {
	opts := clock.FrameReleaseOptions{
		MinFramesForAdjustment: viper.GetInt(key.VideoMinFramesForAdjustment),
		MaxAllowedDrift:        millis(key.VideoMaxDriftMs),
		VsyncOffsetPercent:     viper.GetInt(key.VideoVsyncOffsetPercent),
		RefreshRate:            viper.GetFloat64(key.VideoRefreshRate),
	}
	if viper.GetBool(key.VideoVsync) && opts.RefreshRate > 0 {
		opts.Sampler = clock.NewTickerVsyncSampler(clock.System, opts.RefreshRate)
	}
	return opts
}

// MaxDroppedFramesToNotify returns how many dropped frames are reported at once.
func MaxDroppedFramesToNotify() int {
	return viper.GetInt(key.VideoMaxDroppedFramesToNotify)
}
