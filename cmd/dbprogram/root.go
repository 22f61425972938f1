package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/conn"
	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/resolve"
	"github.com/ignaciocaff/dbprogram/internal/schema"
)

var (
	cfgFile string
	verbose bool

	// active is the env of the running command; shutdown releases it.
	active *env
)

// Version is set at build time.
var Version = "0.1.0"

// env is what every subcommand runs with.
type env struct {
	registry *resolve.Registry
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dbprogram",
		Short: "Resolve and run configured stored procedures",
		Long: `dbprogram resolves stored procedures and functions declared in dbprogram.yaml,
validates them against the live database schema and runs them on one or all
connections of a database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			pool := conn.NewPool(cfg, conn.WithLogger(logger))
			reg := resolve.NewRegistry(cfg, pool, schema.NewCatalog(logger), logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			core.Configure(reg, ctx, logger)
			active = &env{registry: reg, logger: logger}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dbprogram.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newExecCommand())
	root.AddCommand(newDescribeCommand())

	root.SetErr(os.Stderr)
	return root
}

// shutdown closes the registry pools and flushes the logger. main calls it
// after Execute, including when the command failed.
func shutdown() error {
	e := active
	active = nil
	if e == nil {
		return nil
	}
	_ = e.logger.Sync()
	return e.registry.Close()
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
