package tui

import (
	"errors"
	"sync"
	"testing"

	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/internal/ui"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/player"
	tea "github.com/charmbracelet/bubbletea"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeController struct {
	mu            sync.Mutex
	listeners     []*player.Listener
	playWhenReady bool
	state         engine.State
	positionMs    int64
	durationMs    int64
	seeks         []int64
	tracks        [][]*media.Format
	selected      []int
}

func newFakeController() *fakeController {
	return &fakeController{
		state:      engine.StateReady,
		positionMs: 10_000,
		durationMs: 60_000,
		tracks: [][]*media.Format{
			{
				media.NewAudioFormat("1", media.MimeAudioAAC, 128_000, 1024, 60_000_000, 2, 48000, nil, "eng"),
				media.NewAudioFormat("2", media.MimeAudioAAC, 128_000, 1024, 60_000_000, 2, 48000, nil, "swe"),
			},
			{
				media.NewTextFormat("3", media.MimeTextVTT, 0, 60_000_000, "eng"),
			},
		},
		selected: []int{0, 0},
	}
}

func (f *fakeController) AddListener(l *player.Listener) { f.listeners = append(f.listeners, l) }
func (f *fakeController) RemoveListener(*player.Listener) { f.listeners = nil }
func (f *fakeController) PlayWhenReady() bool             { return f.playWhenReady }
func (f *fakeController) TogglePause()                    { f.playWhenReady = !f.playWhenReady }
func (f *fakeController) PlaybackState() engine.State     { return f.state }
func (f *fakeController) PositionMs() int64               { return f.positionMs }
func (f *fakeController) DurationMs() int64               { return f.durationMs }
func (f *fakeController) BufferedPercentage() int         { return 50 }
func (f *fakeController) TrackCount(r int) int            { return len(f.tracks[r]) }
func (f *fakeController) SelectedTrack(r int) int         { return f.selected[r] }

func (f *fakeController) SeekTo(positionMs int64) {
	f.seeks = append(f.seeks, positionMs)
	f.positionMs = positionMs
}

func (f *fakeController) TrackFormat(r, t int) *media.Format {
	return f.tracks[r][t]
}

func (f *fakeController) SetSelectedTrack(r, t int) {
	f.selected[r] = t
}

type staticCaptions string

func (c staticCaptions) Current() string { return string(c) }

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPlaybackView(t *testing.T) {
	Convey("Given a view over a ready player", t, func() {
		controller := newFakeController()
		b := newBubble(&Options{
			Title:      "clip.mp4",
			Controller: controller,
			Renderers:  []string{"audio", "text"},
			Captions:   staticCaptions("hello there"),
		})
		So(controller.listeners, ShouldHaveLength, 1)

		Convey("It should show the title, position and captions", func() {
			view := b.View()
			So(view, ShouldContainSubstring, "clip.mp4")
			So(view, ShouldContainSubstring, "00:10 / 01:00")
			So(view, ShouldContainSubstring, "Paused")
			So(view, ShouldContainSubstring, "hello there")
			So(view, ShouldContainSubstring, "50% buffered")
		})

		Convey("Space should toggle play when ready", func() {
			b.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			So(controller.playWhenReady, ShouldBeTrue)
			So(b.View(), ShouldContainSubstring, "Playing")
		})

		Convey("Arrow keys should seek within the media", func() {
			b.Update(tea.KeyMsg{Type: tea.KeyRight})
			b.Update(tea.KeyMsg{Type: tea.KeyLeft})
			b.Update(tea.KeyMsg{Type: tea.KeyLeft})
			b.Update(tea.KeyMsg{Type: tea.KeyLeft})
			So(controller.seeks, ShouldResemble, []int64{15_000, 10_000, 5_000, 0})

			b.Update(keyRunes("]"))
			b.Update(keyRunes("]"))
			b.Update(keyRunes("]"))
			So(controller.seeks[len(controller.seeks)-1], ShouldEqual, 60_000)
		})

		Convey("Seeking should raise a notification", func() {
			_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyRight})
			So(cmd, ShouldNotBeNil)
			b.Update(ui.NotificationMsg("seek to 00:15"))
			So(b.View(), ShouldContainSubstring, "seek to 00:15")
		})

		Convey("Playback events should update the status", func() {
			b.Update(playbackEvent{playWhenReady: true, state: engine.StateBuffering})
			So(b.View(), ShouldContainSubstring, "Buffering")

			b.Update(playbackEvent{playWhenReady: true, state: engine.StateEnded})
			So(b.View(), ShouldContainSubstring, "Ended")
		})

		Convey("The listener should forward player callbacks", func() {
			controller.listeners[0].StateChanged(true, engine.StateBuffering)
			msg := b.waitForEvent()()
			So(msg, ShouldResemble, playbackEvent{playWhenReady: true, state: engine.StateBuffering})
		})

		Convey("When the track list is opened", func() {
			b.Update(keyRunes("t"))
			So(b.state, ShouldEqual, tracksState)
			So(b.tracksC.Items(), ShouldHaveLength, 3)

			Convey("Enter should select the highlighted track", func() {
				b.tracksC.Select(1)
				b.Update(tea.KeyMsg{Type: tea.KeyEnter})
				So(controller.selected[0], ShouldEqual, 1)
				So(b.tracksC.Items()[0].(*trackItem).selected, ShouldBeFalse)
				So(b.tracksC.Items()[1].(*trackItem).selected, ShouldBeTrue)
			})

			Convey("d should disable the renderer", func() {
				b.tracksC.Select(2)
				b.Update(keyRunes("d"))
				So(controller.selected[1], ShouldEqual, engine.TrackDisabled)
			})

			Convey("Esc should return to playback", func() {
				b.Update(tea.KeyMsg{Type: tea.KeyEscape})
				So(b.state, ShouldEqual, playingState)
			})
		})

		Convey("An error should replace the view", func() {
			b.Update(errors.New("decoder init failed"))
			So(b.state, ShouldEqual, errorState)
			So(b.View(), ShouldContainSubstring, "decoder init failed")

			_, cmd := b.Update(keyRunes("q"))
			So(cmd, ShouldNotBeNil)
		})

		Convey("Detaching should remove the listener", func() {
			b.detach()
			So(controller.listeners, ShouldBeEmpty)
		})
	})

	Convey("Given a player that is not prepared", t, func() {
		controller := newFakeController()
		controller.state = engine.StateIdle
		b := newBubble(&Options{Title: "clip.mp4", Controller: controller, Renderers: []string{"audio", "text"}})

		Convey("Seeking and the track list should be unavailable", func() {
			b.Update(tea.KeyMsg{Type: tea.KeyRight})
			So(controller.seeks, ShouldBeEmpty)

			b.Update(keyRunes("t"))
			So(b.state, ShouldEqual, playingState)
		})
	})
}
