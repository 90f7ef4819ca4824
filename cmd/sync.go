package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/opuslt/opussync/internal/feed"
	"github.com/opuslt/opussync/internal/report"
	"github.com/opuslt/opussync/internal/repositories"
	"github.com/opuslt/opussync/internal/services"
	"github.com/opuslt/opussync/internal/shared"
	"github.com/opuslt/opussync/internal/tasks"
)

// SyncRun executes one full pass: fetch the feed, resolve and classify
// every record, then reconcile the managed playlists.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Playlists.MainID == "" {
		return fmt.Errorf("%w: playlists.main_id is required", shared.ErrMissingConfig)
	}

	catalog, err := r.authenticatedCatalog(ctx, config)
	if err != nil {
		return err
	}

	loc, err := config.Station.Location()
	if err != nil {
		return fmt.Errorf("%w: station.timezone: %v", shared.ErrInvalidConfig, err)
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	store := repositories.NewCacheRepository(db, loc)

	runID := shared.GenerateID()
	logger := shared.WithLogger(r.logger, "run", runID)

	engine := tasks.NewSyncEngine(tasks.EngineOpts{
		Feed:            feed.NewClient(config.Station.FeedURL, nil, logger),
		Normalizer:      feed.NewNormalizer(loc, config.Station.Cutoff(), logger),
		Catalog:         catalog,
		Store:           store,
		Keywords:        config.Genre.Keywords,
		MainPlaylistID:  config.Playlists.MainID,
		GenrePlaylistID: config.Playlists.GenreID,
		GenreMaxTracks:  config.Playlists.GenreMaxTracks,
		Cutoff:          config.Station.Cutoff(),
		Logger:          logger,
	})

	if cmd.Bool("clear-genre-cache") {
		count, err := engine.ClearGenreCache()
		if err != nil {
			return fmt.Errorf("failed to clear genre cache: %w", err)
		}
		logger.Info("cleared genre classification cache", "count", count)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", report.RenderSummary(result))

	if reportPath := cmd.String("report"); reportPath != "" || cmd.IsSet("report") || cmd.IsSet("report-format") {
		path, err := report.WriteReport(result, reportPath, cmd.String("report-format"), time.Now())
		if err != nil {
			return err
		}
		r.writePlain("Report written to %s\n", path)
	}

	return nil
}

// authenticatedCatalog builds a Spotify client from the given config and
// authenticates it headlessly with the stored refresh token.
func (r *Runner) authenticatedCatalog(ctx context.Context, config *shared.Config) (services.Catalog, error) {
	svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return nil, err
	}

	if err := svc.Authenticate(ctx, config.Credentials.Spotify.Map()); err != nil {
		return nil, fmt.Errorf("spotify authentication failed: %w", err)
	}

	return svc, nil
}

// syncCommand runs the playlist sync pass
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync the station feed into the configured playlists",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one sync pass",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "clear-genre-cache",
						Usage: "Drop cached genre classifications before the run",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write a run report to the given file (default name is dated)",
					},
					&cli.StringFlag{
						Name:  "report-format",
						Usage: "Report format: csv (misses only), text, or markdown",
						Value: "csv",
					},
				},
				Action: r.SyncRun,
			},
		},
	}
}
