package tui

import (
	"fmt"
	"time"

	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/internal/ui"
	"github.com/anisan-cli/reelplay/util"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	pollInterval = 200 * time.Millisecond
	seekStepMs   = 5_000
	jumpStepMs   = 30_000
)

type tickMsg time.Time

func (b *statefulBubble) tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (b *statefulBubble) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-b.eventChannel
	}
}

func (b *statefulBubble) waitForError() tea.Cmd {
	return func() tea.Msg {
		return <-b.errorChannel
	}
}

// seekBy moves playback by deltaMs, clamped to the media.
func (b *statefulBubble) seekBy(deltaMs int64) tea.Cmd {
	target := max(0, b.controller.PositionMs()+deltaMs)
	if duration := b.controller.DurationMs(); duration >= 0 {
		target = min(target, duration)
	}
	return b.seekTo(target)
}

func (b *statefulBubble) seekTo(positionMs int64) tea.Cmd {
	if b.playback == engine.StateIdle {
		return nil
	}
	b.controller.SeekTo(positionMs)
	b.positionMs = positionMs
	return ui.Notify(fmt.Sprintf("seek to %s", util.FormatPosition(positionMs*1000)))
}

// loadTracks fills the track list with every track of every renderer slot.
func (b *statefulBubble) loadTracks() tea.Cmd {
	var items []list.Item
	for r, kind := range b.options.Renderers {
		selected := b.controller.SelectedTrack(r)
		for t := range b.controller.TrackCount(r) {
			items = append(items, &trackItem{
				renderer: r,
				kind:     kind,
				track:    t,
				format:   b.controller.TrackFormat(r, t),
				selected: t == selected,
			})
		}
	}
	return b.tracksC.SetItems(items)
}

// selectTrack plays the highlighted track on its renderer slot, or turns the slot off when disable is set.
func (b *statefulBubble) selectTrack(disable bool) tea.Cmd {
	item, ok := b.tracksC.SelectedItem().(*trackItem)
	if !ok {
		return nil
	}

	track := item.track
	notification := fmt.Sprintf("%s track %d selected", item.kind, item.track+1)
	if disable {
		track = engine.TrackDisabled
		notification = item.kind + " disabled"
	}
	b.controller.SetSelectedTrack(item.renderer, track)

	for _, it := range b.tracksC.Items() {
		if other := it.(*trackItem); other.renderer == item.renderer {
			other.selected = other.track == track
		}
	}
	return ui.Notify(notification)
}
