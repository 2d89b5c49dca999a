package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/platform/migrate"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "server",
		Short: "Task tracking API server",
		Long: `Serves the task tracking HTTP API and runs task workloads in the background.

Configuration is read from config.{yaml,toml,json}, .env and TASKTRACK_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "",
		"config file to read instead of searching for config.{yaml,toml,json}")

	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts))
	return root
}

// load reads the configuration and installs the structured logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{ConfigFile: o.configFile})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"worker_count", cfg.Processing.WorkerCount)
	return cfg, log, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides config)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(migrate.Commands, "|") + "]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrate.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			db, err := openDatabase(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database connection", "error", err)
				}
			}()

			return migrate.Run(cmd.Context(), db, cfg.Database.Driver, args[0], log)
		},
	}
}
