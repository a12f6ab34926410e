package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsemeter"
	"github.com/jpalmerr/pulsemeter/config"
)

// probeCmd sends one request and prints the resulting log entry.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection to an endpoint once",
	Long: `Send a single request to the configured endpoint and print the log entry
it produces, including the pretty-printed response.

The endpoint, method and token come from the config file and environment;
--endpoint overrides the endpoint.

Exit codes:
  0 - The endpoint answered with a 2xx status
  1 - The request failed

Example:
  pulsemeter probe --endpoint http://localhost:3001/api/sensor
  pulsemeter probe -c pulsemeter.yaml`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringP("config", "c", "", "path to config file (.yaml, .yml or .toml)")
	probeCmd.Flags().String("endpoint", "", "endpoint URL, overrides the config file")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if cfg.Endpoint == "" {
		return errors.New("no endpoint configured (use --endpoint or a config file)")
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts,
		pulsemeter.WithoutServer(),
		pulsemeter.WithLogger(newLogger(cfg.Level())),
	)

	m, err := pulsemeter.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	entry := m.TestConnection(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if entry.Outcome != pulsemeter.OutcomeSuccess {
		return fmt.Errorf("probe failed: %s", entry.Message)
	}
	return nil
}
