package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tmkontra/syncify/internal/services"
	"github.com/tmkontra/syncify/internal/shared"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: configPath, Usage: "config file path"},
			&cli.BoolFlag{Name: "auth-url", Usage: "print the Spotify authorization URL and exit"},
		},
		Action: r.Setup,
	}
}

// Setup initializes the config file and database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	config := r.config
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err = shared.LoadConfig(path); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	}
	r.config = config

	if cmd.Bool("auth-url") {
		limiter := services.NewRateLimiter(config.Matching.RateLimit)
		catalog, err := services.NewSpotifyCatalog(config.Credentials.Spotify, limiter, r.logger)
		if err != nil {
			return err
		}
		return r.writePlainln("%s", catalog.GetAuthURL(shared.GenerateID()))
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}
