// Package media defines the value types exchanged between sample sources, renderers and the playback engine.
package media

// Time sentinels. All media times are expressed in microseconds.
const (
	// UnknownTimeUs marks a duration or position that is not known.
	UnknownTimeUs int64 = -1

	// MatchLongestUs is reported by renderers whose duration should follow the longest other renderer.
	MatchLongestUs int64 = -2

	// EndOfTrackUs is reported as a buffered position once all remaining media has been loaded.
	EndOfTrackUs int64 = -3
)

// NoValue marks an unset integer attribute of a Format.
const NoValue = -1

// MicrosPerSecond converts between seconds and media time.
const MicrosPerSecond = 1_000_000

// UsToMs converts a media time to milliseconds, passing sentinels through unchanged.
func UsToMs(us int64) int64 {
	if us < 0 {
		return us
	}
	return us / 1000
}

// MsToUs converts milliseconds to a media time, passing sentinels through unchanged.
func MsToUs(ms int64) int64 {
	if ms < 0 {
		return ms
	}
	return ms * 1000
}
