// Package main is the entry point for the pulsemeter CLI.
//
// PulseMeter can be run either as a library (SDK) or as a standalone binary
// with YAML or TOML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	pulsemeter serve -c pulsemeter.yaml    # Start polling and the dashboard
//	pulsemeter validate -c pulsemeter.yaml # Validate configuration
//	pulsemeter probe --endpoint URL        # Test a connection once
//	pulsemeter version                     # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsemeter/config"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pulsemeter",
	Short: "A live monitor for one IoT telemetry endpoint",
	Long: `PulseMeter polls a single REST telemetry endpoint, extracts a numeric
reading from whatever JSON the device returns, and shows the last 50 samples,
the last 100 log entries and session statistics on a live dashboard.

Quick start:
  1. Create a config file (pulsemeter.yaml)
  2. Run: pulsemeter serve -c pulsemeter.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  endpoint: http://192.168.1.40/api/sensor
  interval: 2s
  monitoring: true
  extractor: json:sensor.temperature

Every setting can also be given as a PULSEMETER_* environment variable,
e.g. PULSEMETER_ENDPOINT or PULSEMETER_INTERVAL.`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pulsemeter binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulsemeter %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig reads the file named by the --config flag. Without one, the
// defaults and PULSEMETER_* environment variables are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}
