package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a PulseMeter configuration file without starting the server.

This command parses the YAML or TOML, applies PULSEMETER_* environment
overrides, expands ${VAR} references, and validates all fields. It's useful
for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pulsemeter validate -c pulsemeter.yaml
  pulsemeter validate --config /etc/pulsemeter/pulsemeter.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "(not set)"
	}
	auth := "none"
	if cfg.AuthToken != "" {
		auth = "bearer token"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:       %d\n", cfg.Port)
	fmt.Printf("  Endpoint:   %s\n", endpoint)
	fmt.Printf("  Method:     %s\n", cfg.Method)
	fmt.Printf("  Auth:       %s\n", auth)
	fmt.Printf("  Interval:   %s\n", cfg.Interval.Duration())
	fmt.Printf("  Timeout:    %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Monitoring: %t\n", cfg.Monitoring)
	fmt.Printf("  Extractor:  %s\n", extractorName(cfg.Extractor))

	return nil
}
