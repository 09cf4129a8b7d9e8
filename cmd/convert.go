package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tmkontra/syncify/internal/cache"
	"github.com/tmkontra/syncify/internal/decisions"
	"github.com/tmkontra/syncify/internal/formatter"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/reconcile"
	"github.com/tmkontra/syncify/internal/resolve"
	"github.com/tmkontra/syncify/internal/shared"
	"github.com/tmkontra/syncify/internal/syncstate"
	"github.com/tmkontra/syncify/internal/tasks"
)

func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Resolve local playlists and push them to the catalog",
		ArgsUsage: "[directory]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "directory", Value: "."},
		},
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "threshold", Usage: "manual-review score floor (0-100)"},
			&cli.FloatFlag{Name: "auto-threshold", Usage: "auto-accept score floor, must exceed --threshold"},
			&cli.IntFlag{Name: "workers", Usage: "concurrent resolution workers"},
			&cli.BoolFlag{Name: "batch", Usage: "suppress prompts, leave uncertain tracks unresolved"},
			&cli.BoolFlag{Name: "auto-mode", Usage: "fully unattended run, implies --batch"},
			&cli.BoolFlag{Name: "clear-cache", Usage: "drop memoized resolutions before running"},
			&cli.BoolFlag{Name: "json", Usage: "print run reports as JSON"},
		},
		Action: r.Convert,
	}
}

// Convert resolves every playlist file under the directory argument and
// pushes the matches to same-named remote playlists.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("directory")
	if dir == "" {
		dir = "."
	}

	opts, err := r.matchingOptions(cmd)
	if err != nil {
		return err
	}

	catalog, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	resolutions := cache.NewSQLite(db, shared.WithLogger(r.logger, "component", "cache"))
	if cmd.Bool("clear-cache") {
		if err := resolutions.Clear(); err != nil {
			return err
		}
	}

	reconciler := reconcile.New(catalog, r.logger)
	reconciler.ReadOnly = r.config.Reconcile.ReadOnly
	if cmd.Bool("auto-mode") {
		reconciler.ReadOnly = false
	}
	if r.config.Reconcile.Similarity > 0 {
		reconciler.Names.SimilarFloor = r.config.Reconcile.Similarity
	}

	engine := tasks.NewEngine(
		catalog,
		resolve.NewResolver(catalog, resolutions, r.logger, opts.Threshold),
		reconciler,
		decisions.NewStore(db, shared.WithLogger(r.logger, "component", "decisions")),
		syncstate.NewTracker(db),
		r.logger,
		opts,
	)

	progress := make(chan tasks.ProgressUpdate, 64)
	go r.printProgress(progress)

	var reviews chan *models.ReviewRequest
	reviewsDone := make(chan struct{})
	if opts.Batch {
		close(reviewsDone)
	} else {
		reviews = make(chan *models.ReviewRequest)
		go r.reviewLoop(reviews, reviewsDone)
	}

	reports, runErr := engine.ConvertDirectory(ctx, progress, reviews, dir)
	if reviews != nil {
		close(reviews)
	}
	close(progress)
	<-reviewsDone

	if runErr != nil {
		if errors.Is(runErr, shared.ErrInvalidInput) {
			r.writePlainln("%v", runErr)
			return nil
		}
		return runErr
	}
	if cmd.Bool("json") {
		return r.writeJSON(reports, true)
	}
	return r.writePlain("\n%s", formatter.RenderRunReports(reports))
}

// matchingOptions folds config defaults and command flags into engine
// options. Flags win when set.
func (r *Runner) matchingOptions(cmd *cli.Command) (tasks.Options, error) {
	opts := tasks.Options{
		Threshold:     r.config.Matching.Threshold,
		AutoThreshold: r.config.Matching.AutoThreshold,
		Workers:       r.config.Matching.Workers,
		RateLimit:     r.config.Matching.RateLimit,
	}
	if cmd.IsSet("threshold") {
		opts.Threshold = cmd.Float("threshold")
	}
	if cmd.IsSet("auto-threshold") {
		opts.AutoThreshold = cmd.Float("auto-threshold")
	}
	if cmd.IsSet("workers") {
		opts.Workers = int(cmd.Int("workers"))
	}
	opts.Batch = cmd.Bool("batch") || cmd.Bool("auto-mode")

	if opts.Threshold < 0 || opts.Threshold > 100 {
		return opts, fmt.Errorf("%w: --threshold must be between 0 and 100", shared.ErrInvalidFlag)
	}
	if opts.AutoThreshold < 0 || opts.AutoThreshold > 100 {
		return opts, fmt.Errorf("%w: --auto-threshold must be between 0 and 100", shared.ErrInvalidFlag)
	}
	if cmd.IsSet("auto-threshold") && opts.AutoThreshold <= opts.Threshold {
		return opts, fmt.Errorf("%w: --auto-threshold must exceed --threshold", shared.ErrInvalidFlag)
	}
	return opts, nil
}

// printProgress streams progress updates to the output until the
// channel closes.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		if update.Message != "" {
			r.writePlainln("%s", update.Message)
		}
	}
}
