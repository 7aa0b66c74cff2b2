// Package main is the entry point of reelplay.
package main

import (
	"github.com/anisan-cli/reelplay/cmd"
	"github.com/anisan-cli/reelplay/config"
	"github.com/anisan-cli/reelplay/internal/cache"
	"github.com/anisan-cli/reelplay/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	go cache.CollectGarbage()

	cmd.Execute()
}
