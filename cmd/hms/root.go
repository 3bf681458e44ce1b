package main

import (
	"context"
	"fmt"

	"github.com/amoreldmija/hospital/app"
	"github.com/amoreldmija/hospital/config"
	"github.com/amoreldmija/hospital/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// clientLogLevel keeps console commands quiet unless asked otherwise
const clientLogLevel = "warn"

// cli carries the configuration, logger and dependencies shared by every
// command of one process.
type cli struct {
	loadConfig func(ctx context.Context) (*config.Config, error)
	newLogger  func(level, format string) (*zap.Logger, error)

	logLevel string

	cfg    *config.Config
	logger *zap.Logger
	deps   *app.Dependencies
}

func newCLI() *cli {
	return &cli{
		loadConfig: config.New,
		newLogger:  observability.NewLogger,
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hms",
		Short:         "Hospital management API server and console client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (defaults to LOG_LEVEL for serve, warn otherwise)")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.policyCmd())
	root.AddCommand(c.signupCmd())
	root.AddCommand(c.loginCmd())
	root.AddCommand(c.logoutCmd())
	root.AddCommand(c.whoamiCmd())
	root.AddCommand(c.canCmd())
	root.AddCommand(c.auditCmd())
	return root
}

// setup loads the configuration and builds the logger once per process
func (c *cli) setup(ctx context.Context, server bool) error {
	if c.cfg != nil {
		return nil
	}

	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, format := c.logLevel, cfg.Observability.LogFormat
	if level == "" {
		level = cfg.Observability.LogLevel
		if !server {
			level, format = clientLogLevel, "console"
		}
	}
	logger, err := c.newLogger(level, format)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

// dependencies wires the application once per process
func (c *cli) dependencies(ctx context.Context, server bool) (*app.Dependencies, error) {
	if err := c.setup(ctx, server); err != nil {
		return nil, err
	}
	if c.deps != nil {
		return c.deps, nil
	}

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.deps = deps
	return deps, nil
}

func (c *cli) close() {
	if c.deps != nil {
		_ = c.deps.Close(context.Background())
		c.deps = nil
		return
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
