package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ippclub/nxsync/internal/config"
	"github.com/ippclub/nxsync/internal/logger"
	"github.com/ippclub/nxsync/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		opts       service.Options
	)

	cmd := &cobra.Command{
		Use:   "nxsync",
		Short: "Sync Switch title and performance data into the database",
		Long: `Mirror the title and performance repositories, attribute contributors
from merged pull requests and reconcile the database with the data files.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the config file")
	cmd.Flags().BoolVar(&opts.FullRebuild, "full-rebuild", false, "Ignore the cache, truncate all tables and resync everything")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Ignore the cache without truncating tables")

	return cmd
}

func run(ctx context.Context, configPath string, opts service.Options) error {
	// Load configuration
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := service.Run(ctx, cfg, log, opts); err != nil {
		log.Error("sync failed", zap.Error(err))
		return err
	}
	return nil
}
