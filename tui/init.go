package tui

import tea "github.com/charmbracelet/bubbletea"

func (b *statefulBubble) Init() tea.Cmd {
	return tea.Batch(b.tick(), b.waitForEvent(), b.waitForError(), b.spinnerC.Tick)
}
