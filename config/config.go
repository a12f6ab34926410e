// Package config provides file configuration for PulseMeter.
//
// This package enables running PulseMeter as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Files are YAML (.yaml, .yml) or TOML (.toml); any field can be overridden
// by a PULSEMETER_* environment variable.
//
// Example configuration:
//
//	title: Greenhouse
//	port: 8080
//
//	endpoint: http://192.168.1.40/api/sensor
//	method: GET
//	auth_token: ${SENSOR_TOKEN:-}
//	interval: 2s
//	timeout: 5s
//	monitoring: true
//	extractor: json:sensor.temperature
package config

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort     = 8080
	defaultMethod   = "GET"
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second

	// minInterval matches the lowest interval the poll controller accepts.
	minInterval = 500 * time.Millisecond
	minTimeout  = 100 * time.Millisecond

	// EnvPrefix prefixes every environment override, e.g. PULSEMETER_ENDPOINT.
	EnvPrefix = "PULSEMETER_"
)

// Config is the root configuration structure for PulseMeter.
//
// It maps directly to the YAML or TOML configuration file structure.
// Use [Load], [Parse] or [ParseTOML] to create a Config.
type Config struct {
	// Title is the dashboard title. Defaults to "PulseMeter" if not set.
	Title string `yaml:"title" toml:"title" env:"TITLE"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" toml:"port" env:"PORT"`

	// Endpoint is the telemetry URL to poll.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Endpoint string `yaml:"endpoint" toml:"endpoint" env:"ENDPOINT"`

	// Method is the HTTP method (GET or POST). Defaults to GET.
	Method string `yaml:"method" toml:"method" env:"METHOD"`

	// AuthToken is sent as a bearer token.
	// Supports environment variable substitution.
	AuthToken string `yaml:"auth_token" toml:"auth_token" env:"AUTH_TOKEN"`

	// Interval is the time between polls. Defaults to 2s, minimum 500ms.
	Interval Duration `yaml:"interval" toml:"interval" env:"INTERVAL"`

	// Timeout is the per-request timeout. Defaults to 5s, minimum 100ms.
	Timeout Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`

	// Monitoring starts polling immediately. Requires an endpoint.
	Monitoring bool `yaml:"monitoring" toml:"monitoring" env:"MONITORING"`

	// Extractor determines how the reading is resolved from the response.
	// Can be shorthand ("json:sensor.temperature") or structured.
	Extractor ExtractorConfig `yaml:"extractor" toml:"extractor" env:"EXTRACTOR"`

	// LogLevel is debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
}

// ExtractorConfig specifies how to resolve the reading from a response.
//
// It supports two formats:
//
// Shorthand string:
//
//	extractor: json:sensor.temperature
//	extractor: regex:temp=([-0-9.]+)
//	extractor: default
//
// Structured object:
//
//	extractor:
//	  type: json
//	  path: sensor.temperature
type ExtractorConfig struct {
	// Type is the extractor type: "default", "json", "regex".
	Type string

	// Path is the JSON path (for type: json).
	Path string

	// Pattern is the regular expression with one capture group (for type: regex).
	Pattern string
}

// Duration wraps time.Duration for YAML, TOML and environment decoding.
type Duration time.Duration

var (
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextUnmarshaler = (*ExtractorConfig)(nil)
)

// UnmarshalText parses a duration string such as "2s" or "750ms".
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses the extractor shorthand.
func (e *ExtractorConfig) UnmarshalText(text []byte) error {
	return e.parseShorthand(string(text))
}

// UnmarshalYAML implements yaml.Unmarshaler for ExtractorConfig.
func (e *ExtractorConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return e.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type    string `yaml:"type"`
			Path    string `yaml:"path"`
			Pattern string `yaml:"pattern"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		e.Type = raw.Type
		e.Path = raw.Path
		e.Pattern = raw.Pattern
		return nil
	}

	return fmt.Errorf("extractor must be a string or object, got %v", node.Kind)
}

// UnmarshalTOML implements toml.Unmarshaler for ExtractorConfig.
func (e *ExtractorConfig) UnmarshalTOML(v any) error {
	switch raw := v.(type) {
	case string:
		return e.parseShorthand(raw)
	case map[string]any:
		for key, dst := range map[string]*string{"type": &e.Type, "path": &e.Path, "pattern": &e.Pattern} {
			val, ok := raw[key]
			if !ok {
				continue
			}
			s, ok := val.(string)
			if !ok {
				return fmt.Errorf("extractor.%s must be a string", key)
			}
			*dst = s
		}
		return nil
	default:
		return fmt.Errorf("extractor must be a string or table, got %T", v)
	}
}

// parseShorthand parses extractor shorthand syntax.
//
// Supported formats:
//   - "default" → use the built-in resolution rules
//   - "json:path" → read the value at a JSON path
//   - "regex:pattern" → parse the first capture group of a text body
func (e *ExtractorConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if idx := strings.Index(s, ":"); idx != -1 {
		e.Type = s[:idx]
		value := s[idx+1:]

		switch e.Type {
		case "json":
			e.Path = value
		case "regex":
			e.Pattern = value
		default:
			return fmt.Errorf("unknown extractor type %q", e.Type)
		}
		return nil
	}

	if s != "default" {
		return fmt.Errorf("unknown extractor %q (expected 'default', 'json:path', or 'regex:pattern')", s)
	}
	e.Type = s
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""
		defaultVal := submatches[3]

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a configuration file.
//
// The format is chosen by extension: .toml is TOML, .yaml, .yml or no
// extension is YAML. Returns an error if the file cannot be read, parsed or
// validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml", "":
		return Parse(data)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (expected .yaml, .yml or .toml)", ext)
	}
}

// Parse parses YAML configuration data.
//
// Unknown keys are rejected. After decoding, PULSEMETER_* environment
// overrides are applied, ${VAR} references in endpoint and auth_token are
// expanded, defaults are filled in and the result is validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg.finish()
}

// ParseTOML parses TOML configuration data. It otherwise behaves like [Parse].
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("failed to parse TOML: unknown key %q", undecoded[0].String())
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	c.applyDefaults()
	if err := c.expandAndValidate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Method == "" {
		c.Method = defaultMethod
	}
	if c.Interval == 0 {
		c.Interval = Duration(defaultInterval)
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(defaultTimeout)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	expanded, err := expandEnvVars(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	c.Endpoint = strings.TrimSpace(expanded)

	expanded, err = expandEnvVars(c.AuthToken)
	if err != nil {
		return fmt.Errorf("auth_token: %w", err)
	}
	c.AuthToken = expanded

	if c.Endpoint != "" {
		parsedURL, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("endpoint: invalid url: %w", err)
		}
		if parsedURL.Scheme == "" {
			return errors.New("endpoint: url must have a scheme (http:// or https://)")
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("endpoint: url scheme must be http or https, got %q", parsedURL.Scheme)
		}
		if parsedURL.Host == "" {
			return errors.New("endpoint: url must include a host")
		}
	} else if c.Monitoring {
		return errors.New("monitoring: an endpoint is required when monitoring is enabled")
	}

	c.Method = strings.ToUpper(c.Method)
	if c.Method != "GET" && c.Method != "POST" {
		return fmt.Errorf("method must be GET or POST, got %q", c.Method)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.Interval.Duration() < minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minInterval, c.Interval.Duration())
	}

	if c.Timeout.Duration() < minTimeout {
		return fmt.Errorf("timeout must be at least %s, got %s", minTimeout, c.Timeout.Duration())
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return validateExtractor(&c.Extractor)
}

// Level returns the configured log level. Call after validation.
func (c *Config) Level() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// validateExtractor validates an extractor configuration.
func validateExtractor(e *ExtractorConfig) error {
	switch e.Type {
	case "", "default":
		return nil
	case "json":
		if e.Path == "" {
			return errors.New("extractor: type 'json' requires a path")
		}
	case "regex":
		if e.Pattern == "" {
			return errors.New("extractor: type 'regex' requires a pattern")
		}
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return fmt.Errorf("extractor: invalid regex pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return errors.New("extractor: regex pattern needs a capture group")
		}
	default:
		return fmt.Errorf("extractor: unknown type %q", e.Type)
	}
	return nil
}
