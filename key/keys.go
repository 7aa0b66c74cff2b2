// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// DefinedFieldsCount represents the total cardinality of the application configuration schema.
const DefinedFieldsCount = 23

// Playback Engine - these keys tune when playback starts and resumes.
const (
	PlaybackMinBufferMs   = "playback.min_buffer_ms"
	PlaybackMinRebufferMs = "playback.min_rebuffer_ms"
	PlaybackJoiningTimeMs = "playback.joining_time_ms"
	PlaybackPlayWhenReady = "playback.play_when_ready"
)

// Load Control - these keys bound how much media loaders may buffer ahead of playback.
const (
	LoadControlLowWatermarkMs  = "loadcontrol.low_watermark_ms"
	LoadControlHighWatermarkMs = "loadcontrol.high_watermark_ms"
	LoadControlLowBufferLoad   = "loadcontrol.low_buffer_load"
	LoadControlHighBufferLoad  = "loadcontrol.high_buffer_load"
	LoadControlSegmentSize     = "loadcontrol.segment_size"
	LoadControlBufferSegments  = "loadcontrol.buffer_segments"
)

// Video Output - these keys configure frame release timing.
const (
	VideoVsync                    = "video.vsync"
	VideoRefreshRate              = "video.refresh_rate"
	VideoVsyncOffsetPercent       = "video.vsync_offset_percent"
	VideoMinFramesForAdjustment   = "video.min_frames_for_adjustment"
	VideoMaxDriftMs               = "video.max_drift_ms"
	VideoMaxDroppedFramesToNotify = "video.max_dropped_frames_to_notify"
)

// History Tracking - these keys configure the persistence of resume positions.
const (
	HistorySave = "history.save"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Terminal User Interface (TUI) - these keys govern the interactive playback view.
const (
	TUIEnabled = "tui.enabled"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the non-TUI application behavior.
const (
	CliColored = "cli.colored"
)
