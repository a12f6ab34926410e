package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsemeter"
	"github.com/jpalmerr/pulsemeter/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts polling and the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and the dashboard server",
	Long: `Start PulseMeter.

The server will:
  - Load configuration from the given YAML or TOML file, if any
  - Apply PULSEMETER_* environment overrides
  - Poll the endpoint while monitoring is enabled
  - Serve the dashboard, REST API, SSE, WebSocket and /metrics

Monitoring can be started, paused and reconfigured from the dashboard.
The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pulsemeter serve -c pulsemeter.yaml
  PULSEMETER_ENDPOINT=http://localhost:3001/api/sensor pulsemeter serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (.yaml, .yml or .toml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Level())

	logger.Info("config loaded",
		"endpoint", cfg.Endpoint,
		"monitoring", cfg.Monitoring,
		"extractor", extractorName(cfg.Extractor),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, pulsemeter.WithLogger(logger))

	m, err := pulsemeter.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
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

func extractorName(ec config.ExtractorConfig) string {
	switch ec.Type {
	case "json":
		return "json:" + ec.Path
	case "regex":
		return "regex:" + ec.Pattern
	default:
		return "default"
	}
}
