// Package ui renders short-lived notifications below a bubbletea view.
package ui

import (
	"strings"
	"time"

	"github.com/anisan-cli/reelplay/style"
	tea "github.com/charmbracelet/bubbletea"
)

// notificationLifetime is how long a notification stays visible.
const notificationLifetime = 3 * time.Second

// Model holds the notification currently displayed, if any.
type Model struct {
	notification string
	generation   int
}

// NotificationMsg replaces the displayed notification.
type NotificationMsg string

// ClearNotificationMsg clears the notification it was scheduled for.
type ClearNotificationMsg struct {
	generation int
}

// Notify returns a command displaying text.
func Notify(text string) tea.Cmd {
	return func() tea.Msg {
		return NotificationMsg(text)
	}
}

// Update stores new notifications and schedules their removal. A clear scheduled for an older
// notification leaves a newer one in place.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case NotificationMsg:
		m.notification = string(msg)
		m.generation++
		generation := m.generation
		return tea.Tick(notificationLifetime, func(time.Time) tea.Msg {
			return ClearNotificationMsg{generation: generation}
		})
	case ClearNotificationMsg:
		if msg.generation == m.generation {
			m.notification = ""
		}
	}
	return nil
}

// Notification returns the displayed text.
func (m *Model) Notification() string {
	return m.notification
}

// View appends the notification to the last line of content.
func (m *Model) View(content string) string {
	if m.notification == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	lines[len(lines)-1] += "  " + style.Faint(m.notification)
	return strings.Join(lines, "\n")
}
