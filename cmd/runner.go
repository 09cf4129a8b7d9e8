package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/tmkontra/syncify/internal/formatter"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/services"
	"github.com/tmkontra/syncify/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods
// for each command action.
type Runner struct {
	config  *shared.Config
	catalog services.Catalog
	logger  *log.Logger
	output  io.Writer
	input   io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
// Catalog may be pre-set for tests; otherwise commands build one from
// the configured credentials.
type RunnerOpts struct {
	Config  *shared.Config
	Catalog services.Catalog
	Logger  *log.Logger
	Output  io.Writer
	Input   io.Reader
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	return &Runner{
		config:  opts.Config,
		catalog: opts.Catalog,
		logger:  opts.Logger,
		output:  opts.Output,
		input:   opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		convertCommand, reconcileCommand, cacheCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	b, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// openDatabase opens the configured database and applies migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	path := r.config.Database.Path
	if path == "" {
		path = "syncify.db"
	}
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// openCatalog returns an authenticated catalog session. The access
// token comes from SPOTIFY_ACCESS_TOKEN; obtaining one is left to the
// user's OAuth tooling.
func (r *Runner) openCatalog(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	limiter := services.NewRateLimiter(r.config.Matching.RateLimit)
	catalog, err := services.NewSpotifyCatalog(r.config.Credentials.Spotify, limiter, r.logger)
	if err != nil {
		return nil, err
	}

	token := os.Getenv("SPOTIFY_ACCESS_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("%w: set SPOTIFY_ACCESS_TOKEN", shared.ErrNotAuthenticated)
	}
	if err := catalog.Authenticate(ctx, map[string]string{"access_token": token}); err != nil {
		return nil, err
	}
	r.catalog = catalog
	return catalog, nil
}

// reviewLoop answers review requests from the terminal until the
// channel closes. EOF on input skips the rest of the run.
func (r *Runner) reviewLoop(reviews <-chan *models.ReviewRequest, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r.input)

	for req := range reviews {
		r.writePlain("\n%s", formatter.RenderReview(req))
		r.writePlain("accept [1-%d], (r)eject, (s)kip, skip (a)ll, (m)anual search: ", len(req.Candidates))

		if !scanner.Scan() {
			req.Respond(models.ReviewResponse{Action: models.ReviewSkipRest})
			continue
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch answer {
		case "", "y":
			req.Respond(models.ReviewResponse{Action: models.ReviewAccept})
		case "r", "n":
			req.Respond(models.ReviewResponse{Action: models.ReviewReject})
		case "s":
			req.Respond(models.ReviewResponse{Action: models.ReviewSkip})
		case "a":
			req.Respond(models.ReviewResponse{Action: models.ReviewSkipRest})
		case "m":
			r.writePlain("search query: ")
			if !scanner.Scan() {
				req.Respond(models.ReviewResponse{Action: models.ReviewSkip})
				continue
			}
			req.Respond(models.ReviewResponse{
				Action: models.ReviewManualSearch,
				Query:  strings.TrimSpace(scanner.Text()),
			})
		default:
			if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(req.Candidates) {
				req.Respond(models.ReviewResponse{Action: models.ReviewAccept, Choice: n - 1})
				continue
			}
			r.writePlainln("unrecognized answer, skipping")
			req.Respond(models.ReviewResponse{Action: models.ReviewSkip})
		}
	}
}
