package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/constant"
	"github.com/anisan-cli/reelplay/internal/cache"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/mp4source"
	"github.com/anisan-cli/reelplay/style"
	"github.com/anisan-cli/reelplay/util"
	"github.com/muesli/reflow/wrap"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// probeTimeout bounds how long fetching a remote file may take.
const probeTimeout = time.Minute

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolP("json", "j", false, "Format the output as json")
	probeCmd.Flags().Bool("no-cache", false, "Fetch remote files even when a cached probe exists")
	probeCmd.SetOut(os.Stdout)
}

var probeTemplate = lo.Must(template.New("probe").Funcs(template.FuncMap{
	"bold":  style.Bold,
	"faint": style.Faint,
	"duration": util.FormatPosition,
	"quantify": util.Quantify,
	"bytes":    util.FormatBytes,
}).Parse(constant.ProbeTemplate))

// probedTrack is one track as shown by probe.
type probedTrack struct {
	Format    *media.Format `json:"format"`
	Video     bool          `json:"-"`
	Audio     bool          `json:"-"`
	Samples   int           `json:"samples"`
	Fragments int           `json:"fragments"`
	Bytes     int           `json:"bytes"`
	Decoder   string        `json:"decoder,omitempty"`
	Init      string        `json:"-"`
}

type probeOutput struct {
	URI    string         `json:"uri"`
	Tracks []*probedTrack `json:"tracks"`
}

var probeCmd = &cobra.Command{
	Use:   "probe <uri>",
	Short: "List the tracks of a fragmented MP4 file and the decoders that would play them",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionPlayed,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		infos, err := probe(ctx, args[0], !lo.Must(cmd.Flags().GetBool("no-cache")))
		handleErr(err)

		output := probeOutput{URI: args[0], Tracks: describeTracks(newRegistry(), infos)}
		if lo.Must(cmd.Flags().GetBool("json")) {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(output))
			return
		}

		handleErr(probeTemplate.Execute(cmd.OutOrStdout(), output))
	},
}

// probe returns the tracks of uri. Probes of remote files are cached.
func probe(ctx context.Context, uri string, useCache bool) ([]*mp4source.FormatInfo, error) {
	if !mp4source.IsRemote(uri) {
		return mp4source.Probe(ctx, uri)
	}

	key := cache.Key(uri, "probe")
	var infos []*mp4source.FormatInfo
	if useCache && cache.Read(key, &infos) {
		log.WithFields(map[string]any{"uri": uri}).Debug("probe served from cache")
		return infos, nil
	}

	infos, err := mp4source.Probe(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := cache.Write(key, infos); err != nil {
		log.WithFields(map[string]any{"uri": uri}).Warnf("caching probe: %v", err)
	}
	return infos, nil
}

// describeTracks pairs every probed track with the decoder that would be selected for it.
func describeTracks(selector codec.Selector, infos []*mp4source.FormatInfo) []*probedTrack {
	width, _, err := util.TerminalSize()
	if err != nil || width <= 0 {
		width = 80
	}

	return lo.Map(infos, func(info *mp4source.FormatInfo, _ int) *probedTrack {
		t := &probedTrack{
			Format:    info.Format,
			Video:     media.IsVideo(info.Format.MimeType),
			Audio:     media.IsAudio(info.Format.MimeType),
			Samples:   info.Samples,
			Fragments: info.Fragments,
			Bytes:     info.Bytes,
		}

		if decoder, err := selector.DecoderInfo(info.Format.MimeType, false); err == nil {
			if d, ok := decoder.Get(); ok {
				t.Decoder = d.Name
			}
		}

		if media.IsText(info.Format.MimeType) {
			// text is rendered without a decoder
			t.Decoder = "text renderer"
		}

		init := lo.Map(info.Format.InitializationData, func(data []byte, _ int) string {
			return hex.EncodeToString(data)
		})
		if len(init) > 0 {
			t.Init = strings.TrimSpace(wrap.String(strings.Join(init, " "), max(width-12, 16)))
			t.Init = strings.ReplaceAll(t.Init, "\n", "\n            ")
		}
		return t
	})
}
