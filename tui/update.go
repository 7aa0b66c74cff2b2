package tui

import (
	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/internal/ui"
	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if uiCmd := b.notifier.Update(msg); uiCmd != nil {
		cmd = uiCmd
	}

	switch msg := msg.(type) {
	case error:
		b.raiseError(msg)
		return b, tea.Batch(cmd, b.waitForError())
	case playbackEvent:
		b.playWhenReady = msg.playWhenReady
		b.playback = msg.state
		return b, tea.Batch(cmd, b.waitForEvent())
	case tickMsg:
		b.poll()
		return b, tea.Batch(cmd, b.tick())
	case spinner.TickMsg:
		var spinnerCmd tea.Cmd
		b.spinnerC, spinnerCmd = b.spinnerC.Update(msg)
		return b, tea.Batch(cmd, spinnerCmd)
	case progress.FrameMsg:
		return b, cmd
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, cmd
	case tea.KeyMsg:
		switch {
		case bubblesKey.Matches(msg, b.keymap.forceQuit):
			return b, tea.Quit
		case bubblesKey.Matches(msg, b.keymap.back) && b.state == tracksState:
			b.previousState()
			return b, cmd
		}
	}

	var stateCmd tea.Cmd
	switch b.state {
	case playingState:
		stateCmd = b.updatePlaying(msg)
	case tracksState:
		stateCmd = b.updateTracks(msg)
	case errorState:
		stateCmd = b.updateError(msg)
	}
	return b, tea.Batch(cmd, stateCmd)
}

func (b *statefulBubble) updatePlaying(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case bubblesKey.Matches(keyMsg, b.keymap.quit):
		return tea.Quit
	case bubblesKey.Matches(keyMsg, b.keymap.playPause):
		b.controller.TogglePause()
		b.playWhenReady = !b.playWhenReady
		if b.playWhenReady {
			return ui.Notify("playing")
		}
		return ui.Notify("paused")
	case bubblesKey.Matches(keyMsg, b.keymap.seekForward):
		return b.seekBy(seekStepMs)
	case bubblesKey.Matches(keyMsg, b.keymap.seekBackward):
		return b.seekBy(-seekStepMs)
	case bubblesKey.Matches(keyMsg, b.keymap.jumpForward):
		return b.seekBy(jumpStepMs)
	case bubblesKey.Matches(keyMsg, b.keymap.jumpBackward):
		return b.seekBy(-jumpStepMs)
	case bubblesKey.Matches(keyMsg, b.keymap.restart):
		return b.seekTo(0)
	case bubblesKey.Matches(keyMsg, b.keymap.tracks):
		if b.playback == engine.StateIdle || b.playback == engine.StatePreparing {
			return ui.Notify("tracks are known once prepared")
		}
		b.newState(tracksState)
		return b.loadTracks()
	case bubblesKey.Matches(keyMsg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
	}
	return nil
}

func (b *statefulBubble) updateTracks(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(keyMsg, b.keymap.confirm):
			return b.selectTrack(false)
		case bubblesKey.Matches(keyMsg, b.keymap.disable):
			return b.selectTrack(true)
		}
	}

	var cmd tea.Cmd
	b.tracksC, cmd = b.tracksC.Update(msg)
	return cmd
}

func (b *statefulBubble) updateError(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && bubblesKey.Matches(keyMsg, b.keymap.quit) {
		return tea.Quit
	}
	return nil
}
