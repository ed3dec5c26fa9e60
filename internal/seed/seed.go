// Package seed generates a demo dataset through the scoring service
// and prints the resulting rankings and ratings. It exercises the same
// code paths live entry does, so the output database is a faithful
// sample for development and manual testing.
package seed

import (
	"context"
	"fmt"
	"time"

	service "github.com/tenring/quiver/internal/app"
	"github.com/tenring/quiver/internal/domain/ranking"
	"github.com/tenring/quiver/pkg/logger"
)

// Config controls the generated dataset.
type Config struct {
	StorePath string
	Archers   int
	Rounds    int // rounds per archer
	TopN      int
	Seed      int64
	Verbose   bool
}

// Run seeds the store and prints a report.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("seed")

	svc := service.New(
		service.WithStorePath(cfg.StorePath),
		service.WithGenderHandicaps(map[string]float64{"female": 40}),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	gen := newGenerator(cfg.Seed)

	log.Info(ctx, "seeding archers", logger.Int("archers", cfg.Archers), logger.Int("roundsPerArcher", cfg.Rounds))

	start := time.Now()
	for i := 0; i < cfg.Archers; i++ {
		archer := gen.archer(i)
		if err := svc.PutUser(ctx, archer); err != nil {
			return fmt.Errorf("put user %s: %w", archer.ID, err)
		}

		for r := 0; r < cfg.Rounds; r++ {
			if err := gen.playRound(ctx, svc, archer, r); err != nil {
				return fmt.Errorf("seed round for %s: %w", archer.ID, err)
			}
		}

		if cfg.Verbose {
			log.Info(ctx, "seeded archer", logger.String("id", archer.ID), logger.String("name", archer.Name))
		}
	}

	log.Info(ctx, "seeding done",
		logger.Int("archers", cfg.Archers),
		logger.Duration("took", time.Since(start)),
	)

	return report(ctx, svc, cfg.TopN)
}

// report prints the four rankings and a few ratings to stdout.
func report(ctx context.Context, svc *service.Service, topN int) error {
	now := time.Now()

	masters, err := svc.Masters(ctx, now, topN, "")
	if err != nil {
		return err
	}
	fmt.Printf("\nMasters (top %d)\n", topN)
	for _, en := range masters.Entries {
		fmt.Printf("  %3d. %-20s %8.0f pts  %d rounds  %s\n", en.Rank, en.Name, en.Points, en.Rounds, en.Tier)
	}

	daily, err := svc.Daily(ctx, now, topN, "")
	if err != nil {
		return err
	}
	fmt.Printf("\nDaily (top %d)\n", topN)
	for _, en := range daily.Entries {
		fmt.Printf("  %3d. %-20s %4d (+%.0f)  %s\n", en.Rank, en.Name, en.Score, en.Handicap, en.DistanceLabel)
	}

	best, err := svc.BestScore(ctx, ranking.FilterAll, "", topN, "")
	if err != nil {
		return err
	}
	fmt.Printf("\nBest score (top %d)\n", topN)
	for _, en := range best.Entries {
		fmt.Printf("  %3d. %-20s %4d  %dX  %s\n", en.Rank, en.Name, en.Score, en.TotalX, en.DistanceLabel)
	}

	volume, err := svc.Volume(ctx, ranking.PeriodMonth, now, topN, "")
	if err != nil {
		return err
	}
	fmt.Printf("\nVolume this month (top %d)\n", topN)
	for _, en := range volume.Entries {
		fmt.Printf("  %3d. %-20s %5d arrows in %d sessions\n", en.Rank, en.Name, en.Arrows, en.Sessions)
	}

	users, err := svc.Users(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nRatings\n")
	for i, u := range users {
		if i >= topN {
			break
		}
		r, err := svc.ArcherRating(ctx, u.ID)
		if err != nil {
			continue
		}
		fmt.Printf("  %-20s composite %5.2f  rank %s\n", u.Name, r.Composite, r.RankLabel)
	}

	return nil
}
