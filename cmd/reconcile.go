package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/tmkontra/syncify/internal/cache"
	"github.com/tmkontra/syncify/internal/decisions"
	"github.com/tmkontra/syncify/internal/extract"
	"github.com/tmkontra/syncify/internal/formatter"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/reconcile"
	"github.com/tmkontra/syncify/internal/resolve"
	"github.com/tmkontra/syncify/internal/shared"
	"github.com/tmkontra/syncify/internal/syncstate"
	"github.com/tmkontra/syncify/internal/tasks"
)

func reconcileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "reconcile",
		Usage:     "Make remote playlists match the local ones exactly",
		ArgsUsage: "[directory]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "directory", Value: "."},
		},
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "threshold", Usage: "manual-review score floor (0-100)"},
			&cli.FloatFlag{Name: "auto-threshold", Usage: "auto-accept score floor, must exceed --threshold"},
			&cli.FloatFlag{Name: "similarity", Usage: "fuzzy floor for similar playlist name detection"},
			&cli.BoolFlag{Name: "read-only", Usage: "report mutations instead of applying them"},
			&cli.BoolFlag{Name: "batch", Usage: "suppress prompts, leave uncertain tracks unresolved"},
			&cli.BoolFlag{Name: "missing-tracks-mode", Usage: "audit only: report missing and extra tracks, change nothing"},
		},
		Action: r.Reconcile,
	}
}

// Reconcile brings remote playlists in line with the local files under
// the directory argument, removing remote extras. With
// --missing-tracks-mode it only reports the differences.
func (r *Runner) Reconcile(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("directory")
	if dir == "" {
		dir = "."
	}

	opts, err := r.matchingOptions(cmd)
	if err != nil {
		return err
	}
	auditOnly := cmd.Bool("missing-tracks-mode")

	catalog, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reconciler := reconcile.New(catalog, r.logger)
	reconciler.ReadOnly = cmd.Bool("read-only") || r.config.Reconcile.ReadOnly
	if cmd.IsSet("similarity") {
		reconciler.Names.SimilarFloor = cmd.Float("similarity")
	} else if r.config.Reconcile.Similarity > 0 {
		reconciler.Names.SimilarFloor = r.config.Reconcile.Similarity
	}

	// Audits never record decisions or sync state.
	var store *decisions.Store
	var tracker *syncstate.Tracker
	if !auditOnly {
		store = decisions.NewStore(db, shared.WithLogger(r.logger, "component", "decisions"))
		tracker = syncstate.NewTracker(db)
	}

	engine := tasks.NewEngine(
		catalog,
		resolve.NewResolver(catalog, cache.NewSQLite(db, shared.WithLogger(r.logger, "component", "cache")), r.logger, opts.Threshold),
		reconciler,
		store,
		tracker,
		r.logger,
		opts,
	)

	paths, err := extract.FindPlaylistFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		r.writePlainln("no playlist files under %s", dir)
		return nil
	}

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

	runErr := r.reconcileAll(ctx, engine, progress, reviews, paths, auditOnly)
	if reviews != nil {
		close(reviews)
	}
	close(progress)
	<-reviewsDone
	return runErr
}

func (r *Runner) reconcileAll(
	ctx context.Context,
	engine *tasks.Engine,
	progress chan<- tasks.ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	paths []string,
	auditOnly bool,
) error {
	var reports []*tasks.RunReport
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if auditOnly {
			report, err := engine.FindMissingTracks(ctx, progress, reviews, path)
			if err != nil {
				if errors.Is(err, shared.ErrAuthFailed) {
					return err
				}
				r.logger.Error("playlist audit failed", "playlist", path, "error", err)
				continue
			}
			r.writePlain("\n%s", formatter.RenderMissingReport(report))
			continue
		}

		report, err := engine.ReconcilePlaylist(ctx, progress, reviews, path)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) {
				return err
			}
			r.logger.Error("playlist reconciliation failed", "playlist", path, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	if len(reports) > 0 {
		r.writePlain("\n%s", formatter.RenderRunReports(reports))
	}
	return nil
}
