package tui

import (
	"fmt"
	"strings"

	"github.com/anisan-cli/reelplay/icon"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/style"
	"github.com/anisan-cli/reelplay/util"
	"github.com/charmbracelet/lipgloss"
)

// trackItem is one selectable track of one renderer slot.
type trackItem struct {
	renderer int
	kind     string
	track    int
	format   *media.Format
	selected bool
}

func (t *trackItem) getMark() string {
	return lipgloss.NewStyle().Bold(true).Foreground(style.AccentColor).Render(icon.Get(icon.Play))
}

func kindIcon(format *media.Format) string {
	switch {
	case media.IsVideo(format.MimeType):
		return icon.Get(icon.Video)
	case media.IsAudio(format.MimeType):
		return icon.Get(icon.Audio)
	case media.IsText(format.MimeType):
		return icon.Get(icon.Text)
	default:
		return ""
	}
}

func (t *trackItem) Title() string {
	var sb strings.Builder
	if i := kindIcon(t.format); i != "" {
		sb.WriteString(i)
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "%s #%d", util.Capitalize(t.kind), t.track+1)
	if t.format.Language != "" {
		sb.WriteString(" ")
		sb.WriteString(style.Faint(t.format.Language))
	}
	if t.selected {
		sb.WriteString(" ")
		sb.WriteString(t.getMark())
	}
	return sb.String()
}

func (t *trackItem) Description() string {
	return t.format.String()
}

func (t *trackItem) FilterValue() string {
	return t.kind + " " + t.format.MimeType + " " + t.format.Language
}
