package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apispark/apispark"
	"github.com/apispark/apispark/config"
	"github.com/apispark/apispark/internal/logging"
)

const (
	shutdownTimeout = 10 * time.Second
)

// runCmd starts polling.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the configured APIs",
	Long: `Poll the configured APIs and forward their responses to LogScale.

The command will:
  - Load configuration from the specified YAML file
  - Resolve every job's repository, token and interval
  - Run each job once per interval until interrupted

Any configuration problem aborts startup before a job is scheduled. Failures
of individual runs are logged and the job stays scheduled.

The process runs until interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  apispark run
  apispark run -c /etc/apispark/config.yaml --log-file ./apispark.log`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", config.DefaultPath, "path to config file")
	runCmd.Flags().String("log-file", "", "override log.file from the config (empty string keeps the config value)")
}

func runRun(cmd *cobra.Command, args []string) error {
	// console only until the config names the log file
	bootLogger, _, err := logging.New(logging.Options{Console: cmd.ErrOrStderr()})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		bootLogger.Error("failed to load config", "path", configFile, "error", err.Error())
		return fmt.Errorf("failed to load config: %w", err)
	}

	logOpts := logging.Options{
		File:       cfg.Log.FilePath(),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Console:    cmd.ErrOrStderr(),
	}
	if cmd.Flags().Changed("log-file") {
		logOpts.File, _ = cmd.Flags().GetString("log-file")
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		bootLogger.Error("failed to set up logging", "file", logOpts.File, "error", err.Error())
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	logger.Info("config loaded",
		"path", configFile,
		"jobs", len(cfg.API),
		"repositories", len(cfg.Repository),
	)

	jobs, err := config.BuildJobs(cfg)
	if err != nil {
		logger.Error("invalid configuration", "error", err.Error())
		return fmt.Errorf("failed to build jobs: %w", err)
	}

	app, err := apispark.New(
		apispark.WithIngestURL(cfg.LogScaleURL),
		apispark.WithJobs(jobs...),
		apispark.WithMaxConcurrency(cfg.Scheduler.MaxConcurrency),
		apispark.WithStatusPort(cfg.Status.Port),
		apispark.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create apispark: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runUntilStopped(ctx, app, logger)
}

// runUntilStopped blocks until app returns, bounding the wait after ctx is
// cancelled by shutdownTimeout.
func runUntilStopped(ctx context.Context, app *apispark.Apispark, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("apispark error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("apispark error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
