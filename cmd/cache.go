package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/opuslt/opussync/internal/repositories"
	"github.com/opuslt/opussync/internal/shared"
)

// CacheStats prints row counts for every cache table.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := config.Station.Location()
	if err != nil {
		return fmt.Errorf("%w: station.timezone: %v", shared.ErrInvalidConfig, err)
	}

	stats, err := repositories.NewCacheRepository(db, loc).Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlainHeader("Cache statistics")
	r.writePlain("Resolved tracks:   %d\n", stats.Resolved)
	r.writePlain("Not found:         %d\n", stats.NotFound)
	r.writePlain("Artist genres:     %d\n", stats.ArtistGenres)
	r.writePlain("Classifications:   %d\n", stats.Classifications)
	return nil
}

// CacheClearGenres drops cached track classifications so the next run
// re-evaluates every track against the current keyword set.
func (r *Runner) CacheClearGenres(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := config.Station.Location()
	if err != nil {
		return fmt.Errorf("%w: station.timezone: %v", shared.ErrInvalidConfig, err)
	}

	count, err := repositories.NewCacheRepository(db, loc).ClearClassifications()
	if err != nil {
		return fmt.Errorf("failed to clear classifications: %w", err)
	}

	r.logger.Info("cleared genre classification cache", "count", count)
	r.writePlain("✓ Cleared %d cached classifications\n", count)
	return nil
}

// cacheCommand inspects and maintains the local resolution caches
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the local track cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache table counts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:  "clear-genres",
				Usage: "Drop cached genre classifications",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.CacheClearGenres,
			},
		},
	}
}
