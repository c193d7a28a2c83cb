// SellerPulse ingests marketplace analytics exports.
//
// Usage:
//
//	sellerpulse parse --source wb report.xlsx
//	sellerpulse import --source ozon [--force] a.xlsx b.xlsx
//	sellerpulse imports --limit 20
//	sellerpulse serve --port 8080
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"sellerpulse/internal/config"
	"sellerpulse/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

// env holds what every command needs, set up in Before.
type env struct {
	cfg *config.AppConfig
	log *zap.Logger
}

func main() {
	e := &env{}
	app := &cli.App{
		Name:    "sellerpulse",
		Usage:   "Normalize marketplace funnel and analytics spreadsheets",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory (overrides config.toml)",
				EnvVars: []string{"SELLERPULSE_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SELLERPULSE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment (production, development)",
				EnvVars: []string{"SELLERPULSE_ENV"},
			},
		},
		Before: e.setup,
		After: func(*cli.Context) error {
			if e.log != nil {
				_ = e.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			parseCommand(),
			importCommand(e),
			importsCommand(e),
			exportCommand(e),
			serveCommand(e),
			initConfigCommand(e),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (e *env) setup(c *cli.Context) error {
	cfg, info, err := config.LoadConfigWithInfo()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v := c.String("data-dir"); v != "" {
		cfg.Data.DataDir = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("env"); v != "" {
		cfg.Log.Env = v
	}

	log, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	log.Debug("config loaded", zap.String("path", info.Path), zap.Bool("found", info.FileFound))

	e.cfg = cfg
	e.log = log
	return nil
}
