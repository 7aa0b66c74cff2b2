package tui

import (
	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/internal/ui"
	"github.com/anisan-cli/reelplay/player"
	"github.com/anisan-cli/reelplay/style"
	"github.com/anisan-cli/reelplay/util"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// playbackEvent carries a state change reported by the player.
type playbackEvent struct {
	playWhenReady bool
	state         engine.State
}

// statefulBubble is the model of the playback view.
type statefulBubble struct {
	state         state
	previous      state
	keymap        *statefulKeymap
	options       *Options
	controller    Controller
	listener      *player.Listener
	playWhenReady bool
	playback      engine.State

	spinnerC  spinner.Model
	progressC progress.Model
	bufferC   progress.Model
	tracksC   list.Model
	helpC     help.Model

	eventChannel chan playbackEvent
	errorChannel chan error

	positionMs int64
	durationMs int64
	buffered   int
	lastError  error

	width, height int
	notifier      *ui.Model
}

func (b *statefulBubble) raiseError(err error) {
	b.lastError = err
	b.newState(errorState)
}

func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

func (b *statefulBubble) newState(s state) {
	if b.state == s {
		return
	}
	b.previous = b.state
	b.setState(s)
}

func (b *statefulBubble) previousState() {
	b.setState(b.previous)
	b.previous = playingState
}

func (b *statefulBubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()
	xx, yy := listExtraPaddingStyle.GetFrameSize()

	b.width = width - x
	b.height = height - y

	b.tracksC.SetSize(width-xx, height-yy)
	b.tracksC.Help.Width = width - xx
	b.progressC.Width = util.Clamp(b.width, 10, 120)
	b.bufferC.Width = b.progressC.Width
	b.helpC.Width = b.width
}

// detach stops listening to the controller.
func (b *statefulBubble) detach() {
	b.controller.RemoveListener(b.listener)
}

func newBubble(options *Options) *statefulBubble {
	bubble := &statefulBubble{
		keymap:        newStatefulKeymap(),
		options:       options,
		controller:    options.Controller,
		playWhenReady: options.Controller.PlayWhenReady(),
		playback:      options.Controller.PlaybackState(),
		eventChannel:  make(chan playbackEvent, 16),
		errorChannel:  make(chan error, 1),
		notifier:      &ui.Model{},
	}

	// Listener callbacks run on the player's dispatch goroutine; the channels hand them to the program.
	bubble.listener = &player.Listener{
		StateChanged: func(playWhenReady bool, state engine.State) {
			select {
			case bubble.eventChannel <- playbackEvent{playWhenReady: playWhenReady, state: state}:
			default:
			}
		},
		Error: func(err error) {
			select {
			case bubble.errorChannel <- err:
			default:
			}
		},
	}
	bubble.controller.AddListener(bubble.listener)

	bubble.helpC = help.New()

	bubble.spinnerC = spinner.New()
	bubble.spinnerC.Spinner = spinner.Dot
	bubble.spinnerC.Style = lipgloss.NewStyle().Foreground(style.AccentColor)

	bubble.progressC = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bubble.bufferC = progress.New(progress.WithSolidFill(string(style.BufferedColor)), progress.WithoutPercentage())

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(style.AccentColor).
		Foreground(style.AccentColor).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedTitle

	bubble.tracksC = list.New(nil, delegate, 0, 0)
	bubble.tracksC.Title = "Tracks"
	bubble.tracksC.Styles.Title = lipgloss.NewStyle().Foreground(style.Base).Background(style.TracksTitleColor).Padding(0, 1)
	bubble.tracksC.KeyMap = bubble.keymap.forList()
	bubble.tracksC.AdditionalShortHelpKeys = bubble.keymap.ShortHelp
	bubble.tracksC.SetShowPagination(false)
	bubble.tracksC.SetShowStatusBar(false)
	bubble.tracksC.SetFilteringEnabled(false)

	bubble.resize(80, 24)
	if w, h, err := util.TerminalSize(); err == nil {
		bubble.resize(w, h)
	}

	bubble.poll()
	return bubble
}

// poll refreshes the published position, duration and buffer level.
func (b *statefulBubble) poll() {
	b.positionMs = b.controller.PositionMs()
	b.durationMs = b.controller.DurationMs()
	b.buffered = b.controller.BufferedPercentage()
}
