// Package tui provides the interactive playback view.
package tui

import (
	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/player"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the part of the player the view drives. *player.Player implements it.
type Controller interface {
	AddListener(l *player.Listener)
	RemoveListener(l *player.Listener)

	PlayWhenReady() bool
	TogglePause()
	PlaybackState() engine.State
	SeekTo(positionMs int64)

	PositionMs() int64
	DurationMs() int64
	BufferedPercentage() int

	TrackCount(rendererIndex int) int
	TrackFormat(rendererIndex, trackIndex int) *media.Format
	SelectedTrack(rendererIndex int) int
	SetSelectedTrack(rendererIndex, trackIndex int)
}

// Captions returns the text currently displayed by the text renderer.
type Captions interface {
	Current() string
}

// Options configure the playback view.
type Options struct {
	// Title names the media being played.
	Title      string
	Controller Controller
	// Renderers names every renderer slot of the controller, in order.
	Renderers []string
	// Captions is optional.
	Captions Captions
}

// Run shows the playback view until the user quits.
func Run(options *Options) error {
	bubble := newBubble(options)
	defer bubble.detach()

	_, err := tea.NewProgram(bubble, tea.WithAltScreen()).Run()
	return err
}
