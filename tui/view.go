package tui

import (
	"fmt"
	"strings"

	"github.com/anisan-cli/reelplay/color"
	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/icon"
	"github.com/anisan-cli/reelplay/style"
	"github.com/anisan-cli/reelplay/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"
)

var (
	listExtraPaddingStyle = lipgloss.NewStyle().Padding(1, 2, 1, 0)
	paddingStyle          = lipgloss.NewStyle().Padding(1, 2)
)

func (b *statefulBubble) View() string {
	var output string

	switch b.state {
	case playingState:
		output = b.viewPlaying()
	case tracksState:
		output = b.viewTracks()
	case errorState:
		output = b.viewError()
	default:
		output = "Unknown state"
	}

	return b.notifier.View(output)
}

// status describes the playback state the way a user reads it.
func (b *statefulBubble) status() string {
	switch b.playback {
	case engine.StatePreparing:
		return b.spinnerC.View() + " Preparing"
	case engine.StateBuffering:
		return b.spinnerC.View() + " Buffering"
	case engine.StateEnded:
		return icon.Get(icon.Ended) + " Ended"
	case engine.StateReady:
		if b.playWhenReady {
			return icon.Get(icon.Play) + " Playing"
		}
		return icon.Get(icon.Pause) + " Paused"
	default:
		return icon.Get(icon.Ended) + " Stopped"
	}
}

func (b *statefulBubble) progress() float64 {
	if b.durationMs <= 0 || b.positionMs < 0 {
		return 0
	}
	return util.Clamp(float64(b.positionMs)/float64(b.durationMs), 0, 1)
}

func (b *statefulBubble) viewPlaying() string {
	position := util.FormatPosition(b.positionMs * 1000)
	duration := util.FormatPosition(b.durationMs * 1000)
	if b.durationMs < 0 {
		duration = util.FormatPosition(-1)
	}

	lines := []string{
		style.Title("Now Playing"),
		"",
		style.Truncate(b.width)(style.Fg(color.Purple)(b.options.Title)),
		"",
		fmt.Sprintf("%s  %s", b.status(), style.Faint(position+" / "+duration)),
		"",
		b.progressC.ViewAs(b.progress()),
		b.bufferC.ViewAs(float64(b.buffered)/100) + " " + style.Faint(fmt.Sprintf("%d%% buffered", b.buffered)),
	}

	if b.options.Captions != nil {
		if text := b.options.Captions.Current(); text != "" {
			lines = append(lines, "", wrap.String(style.Italic(text), b.width))
		}
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewTracks() string {
	return listExtraPaddingStyle.Render(b.tracksC.View())
}

func (b *statefulBubble) viewError() string {
	errorStyle := lipgloss.NewStyle().Foreground(color.HiRed).Bold(true)
	errorMsg := wrap.String(errorStyle.Render(b.lastError.Error()), b.width)
	return b.renderLines(
		true,
		[]string{
			style.ErrorTitle("Error"),
			"",
			icon.Get(icon.Fail) + " Playback failed:",
			"",
			errorMsg,
		},
	)
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if addHelp {
		if b.height > h {
			l += strings.Repeat("\n", b.height-h)
		}
		l += b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}
