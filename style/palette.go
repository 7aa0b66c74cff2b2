package style

import "github.com/charmbracelet/lipgloss"

// Colors of the playback view.
var (
	Base    = lipgloss.Color("#1e1e2e")
	Overlay = lipgloss.Color("#6c7086")
	Mauve   = lipgloss.Color("#cba6f7")
	Peach   = lipgloss.Color("#fab387")

	// AccentColor marks the focused element.
	AccentColor = Mauve
	// BufferedColor fills the part of the timeline that is loaded but not played.
	BufferedColor = Overlay
	// TracksTitleColor is the background of the track list title.
	TracksTitleColor = Peach
)
