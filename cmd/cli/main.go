package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/kasa/internal/app"
	"github.com/iho/kasa/internal/infrastructure/config"
	"github.com/iho/kasa/internal/infrastructure/logger"
)

// cli holds the flags shared by every subcommand.
type cli struct {
	envFile  string
	backend  string
	boltPath string
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "kasa",
		Short:         "Shareholder cash distribution",
		Long:          `kasa splits each month's distributable cash among shareholders, nets recorded advances and carries any overdraw into the next month.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Dotenv file to load before the environment")
	rootCmd.PersistentFlags().StringVar(&c.backend, "backend", "", "Storage backend (postgres|bolt), overrides STORAGE_BACKEND")
	rootCmd.PersistentFlags().StringVar(&c.boltPath, "db", "", "Bolt database path, overrides BOLT_PATH")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	rootCmd.AddCommand(
		c.seedCmd(),
		c.previewCmd(),
		c.closeCmd(),
		c.historyCmd(),
		c.splitCmd(),
		c.periodCmd(),
		c.shareholdersCmd(),
		c.carryCmd(),
		c.consistencyCmd(),
		c.interactiveCmd(),
		c.migrateCmd(),
		c.tokenCmd(),
	)

	return rootCmd
}

// config loads configuration and applies flag overrides.
func (c *cli) config() (*config.Config, error) {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return nil, err
	}
	if c.backend != "" {
		cfg.StorageBackend = c.backend
	}
	if c.boltPath != "" {
		cfg.BoltPath = c.boltPath
	}
	if !c.verbose {
		cfg.LogLevel = "warn"
	}
	return cfg, cfg.Validate()
}

// withApp runs fn against freshly wired use cases.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func openApp(ctx context.Context, cfg *config.Config, w io.Writer) (*app.App, error) {
	return app.New(ctx, cfg, newLogger(cfg, w), nil)
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Out: w})
}
