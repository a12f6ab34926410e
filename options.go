package pulsemeter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	title           string
	settings        Settings
	port            int
	serve           bool
	requestTimeout  time.Duration
	extractor       ValueExtractor
	logger          *slog.Logger
	registry        *prometheus.Registry
	sampleCallbacks []func(Sample)
	logCallbacks    []func(LogEntry)
}

// Option is a function that configures a [Monitor] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*monitorConfig) error

// WithSettings replaces the initial monitoring settings as a whole.
//
// The settings are normalised (method upper-cased, interval raised to
// [MinInterval]) and validated by [New]. Options applied after WithSettings
// override individual fields.
//
// Example:
//
//	m, err := pulsemeter.New(pulsemeter.WithSettings(pulsemeter.Settings{
//	    Endpoint:   "http://192.168.1.40/api/sensor",
//	    Method:     "GET",
//	    Interval:   time.Second,
//	    Monitoring: true,
//	}))
func WithSettings(s Settings) Option {
	return func(cfg *monitorConfig) error {
		cfg.settings = s
		return nil
	}
}

// WithEndpoint sets the URL to poll.
//
// Example:
//
//	m, err := pulsemeter.New(
//	    pulsemeter.WithEndpoint("http://localhost:3001/api/sensor"),
//	    pulsemeter.WithMonitoring(true),
//	)
func WithEndpoint(url string) Option {
	return func(cfg *monitorConfig) error {
		if url == "" {
			return errors.New("endpoint URL cannot be empty")
		}
		cfg.settings.Endpoint = url
		return nil
	}
}

// WithMethod sets the HTTP method, GET or POST. Defaults to GET.
func WithMethod(method string) Option {
	return func(cfg *monitorConfig) error {
		cfg.settings.Method = method
		return nil
	}
}

// WithAuthToken sets the bearer token sent with every request.
//
// A token without a scheme is sent as "Bearer <token>"; a value that already
// contains a space (e.g. "Basic dXNlcjpwYXNz") is sent unchanged.
func WithAuthToken(token string) Option {
	return func(cfg *monitorConfig) error {
		cfg.settings.AuthToken = token
		return nil
	}
}

// WithInterval sets the time between polls.
//
// Intervals shorter than [MinInterval] are raised to it. Defaults to
// [DefaultInterval].
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.settings.Interval = d
		return nil
	}
}

// WithMonitoring sets whether polling starts as soon as [Monitor.Start] runs.
// An endpoint is required when enabled.
func WithMonitoring(enabled bool) Option {
	return func(cfg *monitorConfig) error {
		cfg.settings.Monitoring = enabled
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithoutServer disables the built-in HTTP server.
//
// The monitor still polls and keeps state; read it through the [Monitor]
// methods or mount [Monitor.Handler] on your own server.
func WithoutServer() Option {
	return func(cfg *monitorConfig) error {
		cfg.serve = false
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "PulseMeter".
func WithTitle(title string) Option {
	return func(cfg *monitorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithRequestTimeout sets the per-request timeout. Defaults to 5 seconds.
//
// A request that exceeds it is logged as a TIMEOUT error.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithExtractor sets the function that resolves the reading from a response body.
//
// Defaults to [DefaultValueExtractor].
//
// Example:
//
//	m, err := pulsemeter.New(
//	    pulsemeter.WithEndpoint(url),
//	    pulsemeter.WithExtractor(pulsemeter.JSONPathExtractor("sensor.humidity")),
//	)
//
// Returns an error if the extractor is nil.
func WithExtractor(ext ValueExtractor) Option {
	return func(cfg *monitorConfig) error {
		if ext == nil {
			return errors.New("extractor cannot be nil")
		}
		cfg.extractor = ext
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMetricsRegistry registers the poll metrics on reg and serves reg at
// /metrics.
//
// If not specified, a private registry with the Go and process collectors
// is used.
//
// Returns an error if the registry is nil.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *monitorConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithSampleCallback registers a function to be called for every new sample.
//
// Multiple callbacks may be registered; they execute in registration order
// from a single goroutine. Panics are recovered and logged.
//
// IMPORTANT: Callbacks must be non-blocking. Events are delivered through a
// buffered subscription; a callback that falls more than 100 events behind
// misses the overflow.
//
// Nil callbacks are silently ignored.
func WithSampleCallback(cb func(Sample)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.sampleCallbacks = append(cfg.sampleCallbacks, cb)
		return nil
	}
}

// WithLogCallback registers a function to be called for every new log entry,
// including connection test entries.
//
// The same delivery rules as [WithSampleCallback] apply.
//
// Example:
//
//	m, err := pulsemeter.New(
//	    pulsemeter.WithEndpoint(url),
//	    pulsemeter.WithLogCallback(func(e pulsemeter.LogEntry) {
//	        if e.Outcome == pulsemeter.OutcomeError {
//	            log.Printf("ALERT: %s", e.Message)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithLogCallback(cb func(LogEntry)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.logCallbacks = append(cfg.logCallbacks, cb)
		return nil
	}
}
