// Command clipperd is the clip worker daemon: it owns the job queue,
// claims ready jobs and runs them through the processing pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/logging"
	"clipper/internal/pipeline"
	"clipper/internal/queue"
	"clipper/internal/storage"
	"clipper/internal/workflow"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:           "clipperd",
		Short:         "Clipper worker daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFlag)
		},
	}
	cmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, usedPath, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	if usedPath != "" {
		logger.Info("configuration loaded", logging.String("path", usedPath))
	} else {
		logger.Info("using built-in configuration defaults")
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	if !store.Capabilities().Telemetry {
		logger.Warn("job table lacks telemetry columns; progress reporting degraded")
	}

	objects, err := storage.NewFileStore(cfg.Paths.ExportDir)
	if err != nil {
		store.Close()
		return err
	}

	manager := workflow.NewManager(cfg, store, logger, pipeline.Stages(cfg, logger, objects))
	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return err
	}
	defer d.Close()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("shutdown signal received")
	return nil
}
