package version

import (
	"context"
	"fmt"
	"time"

	"github.com/anisan-cli/reelplay/color"
	"github.com/anisan-cli/reelplay/constant"
	"github.com/anisan-cli/reelplay/icon"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/style"
)

// Notify prints a banner when a newer release than the running one is available.
func Notify(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fmt.Printf("%s Checking if a new version is available...\n", icon.Get(icon.Progress))
	latest, err := Latest(ctx)
	if err != nil {
		log.Warnf("version check failed: %v", err)
		return
	}

	if comp, err := Compare(latest, constant.Version); err != nil || comp <= 0 {
		return
	}

	fmt.Printf(`
%s New version is available %s %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(latest),
		style.Faint(fmt.Sprintf("(You're on %s)", constant.Version)),
		style.Faint("https://github.com/anisan-cli/"+constant.Reelplay+"/releases/tag/v"+latest),
	)
}
