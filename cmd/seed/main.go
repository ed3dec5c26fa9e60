package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/tenring/quiver/internal/seed"
	"github.com/tenring/quiver/pkg/logger"
)

// Default configuration constants.
const (
	defaultArchers = 25
	defaultRounds  = 8
	defaultTopN    = 10
	defaultTimeout = 5 * time.Minute
)

func main() {
	var (
		storePath = flag.String("store", "quiver-seed.db", "SQLite database to seed (\":memory:\" for a dry run)")
		archers   = flag.Int("archers", defaultArchers, "Number of archers to generate")
		rounds    = flag.Int("rounds", defaultRounds, "Rounds per archer")
		topN      = flag.Int("top", defaultTopN, "Number of entries to print per ranking")
		seedVal   = flag.Int64("seed", 0, "Random seed (0 uses the current time)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	cfg := &seed.Config{
		StorePath: *storePath,
		Archers:   *archers,
		Rounds:    *rounds,
		TopN:      *topN,
		Seed:      *seedVal,
		Verbose:   *verbose,
	}

	if err := seed.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
