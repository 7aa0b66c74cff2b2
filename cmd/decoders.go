package cmd

import (
	"os"
	"strings"

	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/color"
	"github.com/anisan-cli/reelplay/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(decodersCmd)
	decodersCmd.SetOut(os.Stdout)
}

var decodersCmd = &cobra.Command{
	Use:   "decoders",
	Short: "List the available decoders and the formats they accept",
	Run: func(cmd *cobra.Command, args []string) {
		nameStyle := style.New().Bold(true).Foreground(color.HiPurple).Render

		for i, entry := range newRegistry().Entries() {
			if i > 0 {
				cmd.Println()
			}
			cmd.Println(nameStyle(entry.Name))
			cmd.Println("  " + strings.Join(entry.MimeTypes, ", "))
			if flags := capabilityNames(entry.Capabilities); len(flags) > 0 {
				cmd.Println("  " + style.Faint(strings.Join(flags, " ")))
			}
		}
	},
}

func capabilityNames(c codec.Capabilities) []string {
	names := []lo.Tuple2[bool, string]{
		{A: c.Adaptive, B: "adaptive"},
		{A: c.Secure, B: "secure"},
		{A: c.NeedsFlushWorkaround, B: "recreate-on-flush"},
		{A: c.NeedsEosFlushWorkaround, B: "recreate-on-eos-flush"},
		{A: c.NeedsEosPropagationWorkaround, B: "assume-eos"},
	}
	return lo.FilterMap(names, func(t lo.Tuple2[bool, string], _ int) (string, bool) {
		return t.B, t.A
	})
}
