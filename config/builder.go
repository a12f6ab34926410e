package config

import (
	"fmt"

	"github.com/jpalmerr/pulsemeter"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is not part of the file configuration; callers add
// [pulsemeter.WithLogger] themselves.
func BuildOptions(cfg *Config) ([]pulsemeter.Option, error) {
	opts := []pulsemeter.Option{
		pulsemeter.WithSettings(pulsemeter.Settings{
			Endpoint:   cfg.Endpoint,
			Method:     cfg.Method,
			AuthToken:  cfg.AuthToken,
			Interval:   cfg.Interval.Duration(),
			Monitoring: cfg.Monitoring,
		}),
		pulsemeter.WithPort(cfg.Port),
		pulsemeter.WithRequestTimeout(cfg.Timeout.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, pulsemeter.WithTitle(cfg.Title))
	}

	extractor, err := buildExtractor(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	if extractor != nil {
		opts = append(opts, pulsemeter.WithExtractor(extractor))
	}

	return opts, nil
}

// buildExtractor converts ExtractorConfig to a ValueExtractor.
// Returns nil for default/empty extractors (SDK uses DefaultValueExtractor).
func buildExtractor(ec ExtractorConfig) (pulsemeter.ValueExtractor, error) {
	switch ec.Type {
	case "", "default":
		// nil signals SDK to use DefaultValueExtractor
		return nil, nil
	case "json":
		return pulsemeter.JSONPathExtractor(ec.Path), nil
	case "regex":
		ext, err := pulsemeter.RegexExtractor(ec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("extractor: %w", err)
		}
		return ext, nil
	default:
		return nil, fmt.Errorf("extractor: unknown type %q", ec.Type)
	}
}
