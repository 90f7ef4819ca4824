package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/opuslt/opussync/internal/feed"
	"github.com/opuslt/opussync/internal/shared"
)

// FeedPeek fetches and normalizes the station feed without touching
// Spotify or the cache, for checking what a sync pass would see.
func (r *Runner) FeedPeek(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	loc, err := config.Station.Location()
	if err != nil {
		return fmt.Errorf("%w: station.timezone: %v", shared.ErrInvalidConfig, err)
	}

	client := feed.NewClient(config.Station.FeedURL, nil, r.logger)
	items, err := client.Fetch(ctx)
	if err != nil {
		return err
	}

	records := feed.NewNormalizer(loc, config.Station.Cutoff(), r.logger).Normalize(items)

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}

	r.writePlainHeader(fmt.Sprintf("Feed: %d raw items, %d records in window", len(items), len(records)))
	for i, rec := range records {
		r.writePlain("%d. [%s] %s - %s\n", i+1, rec.Timestamp.Format("2006-01-02 15:04"), rec.Artist, rec.Title)
	}
	return nil
}

// feedCommand inspects the station feed
func feedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Inspect the station's recently played feed",
		Commands: []*cli.Command{
			{
				Name:  "peek",
				Usage: "Fetch and normalize the feed without syncing",
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
				Action: r.FeedPeek,
			},
		},
	}
}
