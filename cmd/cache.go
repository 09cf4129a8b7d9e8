package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/tmkontra/syncify/internal/cache"
	"github.com/tmkontra/syncify/internal/formatter"
)

func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear memoized track resolutions",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache entry counts",
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Drop all cached resolutions",
				Action: r.CacheClear,
			},
		},
	}
}

// CacheStats prints entry counts for the resolution cache.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := cache.NewSQLite(db, r.logger).Stats()
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.RenderCacheStats(stats))
}

// CacheClear drops every cached resolution.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := cache.NewSQLite(db, r.logger).Clear(); err != nil {
		return err
	}
	return r.writePlainln("resolution cache cleared")
}
