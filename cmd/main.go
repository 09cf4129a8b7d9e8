package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/tmkontra/syncify/internal/shared"
)

const configPath = "config.toml"

var version = "dev"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("unable to load %s: %v", configPath, err)
		}
		config = loaded
	} else {
		logger.Debug("no config file found, using defaults", "path", configPath)
	}

	runner := NewRunner(RunnerOpts{Config: config, Logger: logger})

	if os.Getenv("SYNCIFY_DEBUG") != "" {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	app := &cli.Command{
		Name:     "syncify",
		Usage:    "resolve local playlists against a streaming catalog and keep them in sync",
		Version:  version,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}
