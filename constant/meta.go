// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Reelplay is the canonical application identifier used for filesystem paths and CLI branding.
	Reelplay = "reelplay"

	// Version is the current application semantic version string.
	Version = "0.1.0"

	// UserAgent is sent with every request for remote media.
	UserAgent = Reelplay + "/" + Version
)
