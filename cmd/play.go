package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/anisan-cli/reelplay/engine"
	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/history"
	"github.com/anisan-cli/reelplay/icon"
	"github.com/anisan-cli/reelplay/key"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/player"
	"github.com/anisan-cli/reelplay/query"
	"github.com/anisan-cli/reelplay/tui"
	"github.com/anisan-cli/reelplay/util"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Bool("synthetic", false, "Play generated test media instead of a file")
	playCmd.Flags().BoolP("json", "j", false, "Write playback events as json lines instead of showing the view")
	playCmd.Flags().Bool("schema", false, "Print the json schema of --json events and exit")
	playCmd.Flags().BoolP("pick", "p", false, "Choose tracks interactively before playback starts")
	playCmd.Flags().StringArrayP("track", "t", nil, "Select a track as kind=query, e.g. audio=eng, video=#1 or text=off")
	playCmd.Flags().BoolP("resume", "r", true, "Continue from the saved position")
	playCmd.Flags().DurationP("start", "s", 0, "Start at this position, e.g. 1m30s")
	playCmd.Flags().String("pcm-out", "", "Write the played audio as raw PCM to this file")

	playCmd.Flags().Bool("tui", true, "Show the interactive playback view")
	lo.Must0(viper.BindPFlag(key.TUIEnabled, playCmd.Flags().Lookup("tui")))

	lo.Must0(playCmd.RegisterFlagCompletionFunc("track", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return lo.Map(slotNames, func(name string, _ int) string { return name + "=" }), cobra.ShellCompDirectiveNoSpace
	}))

	playCmd.MarkFlagsMutuallyExclusive("pick", "json")
	playCmd.SetOut(os.Stdout)
}

var playCmd = &cobra.Command{
	Use:   "play [uri]",
	Short: "Play a fragmented MP4 file or URL",
	Example: "  reelplay play clip.mp4\n" +
		"  reelplay play https://example.com/clip.mp4 --track audio=eng --track text=off\n" +
		"  reelplay play --synthetic --json",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completionPlayed,
	Run: func(cmd *cobra.Command, args []string) {
		if schema, _ := cmd.Flags().GetBool("schema"); schema {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(eventSchema()))
			return
		}

		synthetic, _ := cmd.Flags().GetBool("synthetic")
		if len(args) == 0 && !synthetic {
			handleErr(errors.New("a uri or --synthetic is required"))
		}

		opts := playOptions{Synthetic: synthetic}
		if len(args) > 0 {
			opts.URI = args[0]
		}
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Pick, _ = cmd.Flags().GetBool("pick")
		opts.Resume, _ = cmd.Flags().GetBool("resume")
		opts.Start, _ = cmd.Flags().GetDuration("start")
		opts.PCMOut, _ = cmd.Flags().GetString("pcm-out")

		tracks, _ := cmd.Flags().GetStringArray("track")
		for _, raw := range tracks {
			query, err := parseTrackQuery(raw)
			handleErr(err)
			opts.Tracks = append(opts.Tracks, query)
		}

		handleErr(play(cmd.Context(), cmd.OutOrStdout(), opts))
	},
}

// completionPlayed suggests previously played media.
func completionPlayed(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return query.SuggestMany(toComplete), cobra.ShellCompDirectiveDefault
}

// playOptions are the parsed flags of the play command.
type playOptions struct {
	URI       string
	Synthetic bool
	JSON      bool
	Pick      bool
	Resume    bool
	Start     time.Duration
	PCMOut    string
	Tracks    []trackQuery
}

func (o playOptions) title() string {
	if o.Synthetic {
		return "synthetic"
	}
	return filepath.Base(o.URI)
}

// watcher collects the player events a session waits for.
type watcher struct {
	listener *player.Listener
	prepared chan struct{}
	ended    chan struct{}
	errs     chan error

	preparedOnce sync.Once
	endedOnce    sync.Once
}

func newWatcher(events *eventWriter) *watcher {
	w := &watcher{
		prepared: make(chan struct{}),
		ended:    make(chan struct{}),
		errs:     make(chan error, 1),
	}

	w.listener = &player.Listener{
		StateChanged: func(playWhenReady bool, state engine.State) {
			if events != nil {
				events.state(playWhenReady, state)
			}
			if state != engine.StateIdle && state != engine.StatePreparing {
				w.preparedOnce.Do(func() { close(w.prepared) })
			}
			if state == engine.StateEnded {
				w.endedOnce.Do(func() { close(w.ended) })
			}
		},
		Error: func(err error) {
			if events != nil {
				events.error(err)
			}
			select {
			case w.errs <- err:
			default:
			}
		},
	}
	return w
}

// play runs one playback session until it ends, fails or is interrupted.
func play(ctx context.Context, out io.Writer, opts playOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events *eventWriter
	if opts.JSON {
		events = newEventWriter(out)
	}

	w := newWatcher(events)
	sessionOpts := sessionOptions{URI: opts.URI, Synthetic: opts.Synthetic, Listener: w.listener}
	if events != nil {
		sessionOpts.OnCues = events.cues
	}
	if opts.PCMOut != "" {
		file, err := filesystem.API().Create(opts.PCMOut)
		if err != nil {
			return err
		}
		defer util.Ignore(file.Close)
		sessionOpts.PCM = file
	}

	logger := log.WithFields(map[string]any{"uri": opts.URI, "synthetic": opts.Synthetic})
	logger.Info("starting playback")
	if !opts.Synthetic {
		if err := query.Remember(opts.URI, 1); err != nil {
			logger.Warnf("remembering uri: %v", err)
		}
	}

	s := newSession(sessionOpts)
	defer util.Ignore(s.release)

	select {
	case <-w.prepared:
	case err := <-w.errs:
		return err
	case <-ctx.Done():
		return nil
	}

	if err := selectTracks(s.player, opts); err != nil {
		return err
	}

	if start := startPosition(opts, logger); start > 0 {
		s.player.SeekTo(start)
	}
	s.player.SetPlayWhenReady(viper.GetBool(key.PlaybackPlayWhenReady))

	var err error
	if viper.GetBool(key.TUIEnabled) && !opts.JSON && util.IsTerminal() {
		err = tui.Run(&tui.Options{
			Title:      opts.title(),
			Controller: s.player,
			Renderers:  slotNames,
			Captions:   s.captions,
		})
	} else {
		err = waitHeadless(ctx, s, w, events)
	}

	saveHistory(s.player, opts, logger)
	if releaseErr := s.release(); err == nil {
		err = releaseErr
	}
	return err
}

// selectTracks applies --pick and --track to the prepared player.
func selectTracks(p *player.Player, opts playOptions) error {
	queries := opts.Tracks
	if opts.Pick {
		if !util.IsTerminal() {
			return errors.New("--pick needs a terminal")
		}
		picked, err := pickTracks(p)
		if err != nil {
			return err
		}
		queries = append(picked, queries...)
	}

	for _, query := range queries {
		track, err := query.resolve(p)
		if err != nil {
			return err
		}
		log.WithFields(map[string]any{"renderer": slotNames[query.slot], "track": track}).Info("track selected")
		p.SetSelectedTrack(query.slot, track)
	}
	return nil
}

// startPosition returns where playback starts, in milliseconds.
func startPosition(opts playOptions, logger *logrus.Entry) int64 {
	if opts.Start > 0 {
		return opts.Start.Milliseconds()
	}
	if !opts.Resume || opts.Synthetic {
		return 0
	}

	position, ok, err := history.Position(opts.URI)
	if err != nil {
		logger.Warnf("reading history: %v", err)
		return 0
	}
	if !ok {
		return 0
	}

	fmt.Fprintf(os.Stderr, "%s resuming at %s\n", icon.Get(icon.Resume), util.FormatPosition(position*1000))
	return position
}

// waitHeadless blocks until playback ended, failed or ctx was cancelled.
func waitHeadless(ctx context.Context, s *session, w *watcher, events *eventWriter) error {
	if events != nil {
		s.player.StartTicker(time.Second, func(positionMs, durationMs int64) {
			events.position(positionMs, durationMs, s.player.BufferedPercentage())
		})
		defer s.player.StopTicker()
	}

	select {
	case <-w.ended:
		return nil
	case err := <-w.errs:
		return err
	case <-ctx.Done():
		return nil
	}
}

// saveHistory remembers where playback stopped.
func saveHistory(p *player.Player, opts playOptions, logger *logrus.Entry) {
	if opts.Synthetic || !viper.GetBool(key.HistorySave) {
		return
	}

	position, duration := p.PositionMs(), p.DurationMs()
	if duration == player.UnknownTime {
		return
	}
	if p.PlaybackState() == engine.StateEnded {
		position = duration
	}

	if err := history.Save(opts.URI, position, duration); err != nil {
		logger.Warnf("saving history: %v", err)
	}
}
