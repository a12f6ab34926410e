package pulsemeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/pulsemeter/dashboard"
	"github.com/jpalmerr/pulsemeter/internal/poller"
	"github.com/jpalmerr/pulsemeter/internal/server"
	"github.com/jpalmerr/pulsemeter/internal/settings"
	"github.com/jpalmerr/pulsemeter/internal/store"
)

const defaultPort = 8080

// ErrEndpointRequired is returned when monitoring is enabled without an endpoint.
var ErrEndpointRequired = errors.New("endpoint URL is required")

// Monitor polls one telemetry endpoint and serves its live state.
//
// Monitor owns the settings, the poll controller, the sample window, the log
// history and the session statistics. It is created using [New] with
// functional options and started with [Monitor.Start].
//
// The typical lifecycle is:
//
//	m, err := pulsemeter.New(
//	    pulsemeter.WithEndpoint("http://localhost:3001/api/sensor"),
//	    pulsemeter.WithMonitoring(true),
//	)
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// The read and control methods are safe for concurrent use before, during
// and after Start.
type Monitor struct {
	title  string
	port   int
	serve  bool
	logger *slog.Logger

	settings   *settings.Store
	store      *store.MemoryStore
	controller *poller.Controller
	server     *server.Server

	sampleCallbacks []func(Sample)
	logCallbacks    []func(LogEntry)

	mu      sync.Mutex
	started bool
}

// New creates a new [Monitor] instance with the given options.
//
// Defaults:
//   - Settings: [DefaultSettings] (no endpoint, monitoring disabled)
//   - Port: 8080
//   - Request timeout: 5 seconds
//   - Extractor: [DefaultValueExtractor]
//
// Returns an error if any option is invalid, if the settings do not validate,
// or if monitoring is enabled without an endpoint.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		settings: settings.Default(),
		port:     defaultPort,
		serve:    true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	snap := cfg.settings.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if snap.Monitoring && snap.Endpoint == "" {
		return nil, ErrEndpointRequired
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics, err := poller.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var extractor poller.ValueExtractor
	if cfg.extractor != nil {
		extractor = poller.ValueExtractor(cfg.extractor)
	}

	m := &Monitor{
		title:           cfg.title,
		port:            cfg.port,
		serve:           cfg.serve,
		logger:          logger,
		settings:        settings.NewStore(snap),
		store:           store.NewMemoryStore(),
		sampleCallbacks: cfg.sampleCallbacks,
		logCallbacks:    cfg.logCallbacks,
	}
	m.controller = poller.NewController(poller.Options{
		Store:     m.store,
		Logger:    logger,
		Timeout:   cfg.requestTimeout,
		Extractor: extractor,
		Metrics:   metrics,
	})
	m.server = server.NewServer(server.Config{
		Store:   m.store,
		Control: control{m},
		Port:    m.port,
		Assets:  dashboard.Assets,
		Title:   m.title,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Logger:  logger,
	})

	// settings changes reach the controller synchronously, in commit order
	m.settings.Subscribe(m.controller.Apply)
	m.controller.Apply(m.settings.Get())

	return m, nil
}

// Start begins polling and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The endpoint is polled at the configured interval while monitoring is enabled
//   - Sample and log callbacks are invoked as state changes
//   - The HTTP server serves the dashboard, the REST API, SSE, WebSocket and /metrics
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start or if Start has already been called. A Monitor cannot be
// restarted.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	snap := m.settings.Get()
	m.logger.Info("pulsemeter starting", "endpoint", snap.Endpoint, "monitoring", snap.Monitoring)
	m.logger.Info("polling configured", "interval", snap.Interval.String(), "method", snap.Method)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	// subscribe before the controller starts so no event is missed
	events := m.store.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			m.dispatch(ev)
		}
	}()

	m.controller.Start(ctx)

	cleanup := func() {
		m.controller.Stop()
		m.store.Unsubscribe(events) // closes events
		wg.Wait()
	}

	if m.serve {
		if err := m.server.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))
	}

	<-ctx.Done()
	cleanup()
	m.logger.Info("pulsemeter stopped")
	return nil
}

// dispatch fans a store event out to the registered callbacks.
func (m *Monitor) dispatch(ev store.Event) {
	switch ev.Kind {
	case store.EventSample:
		if ev.Sample == nil {
			return
		}
		for _, cb := range m.sampleCallbacks {
			invokeCallbackSafe(cb, *ev.Sample, "sample", m.logger)
		}
	case store.EventLog:
		if ev.Log == nil {
			return
		}
		for _, cb := range m.logCallbacks {
			invokeCallbackSafe(cb, *ev.Log, "log", m.logger)
		}
	}
}

// Handler returns the dashboard and API handler, for mounting on another server.
func (m *Monitor) Handler() http.Handler {
	return m.server.Handler()
}

// Port returns the configured HTTP port for the dashboard server.
func (m *Monitor) Port() int {
	return m.port
}

// Samples returns the sample window, oldest first. At most [SampleCapacity]
// entries are returned; the slice is a copy.
func (m *Monitor) Samples() []Sample {
	return m.store.Samples()
}

// Logs returns the log history, oldest first. At most [LogCapacity] entries
// are returned; the slice is a copy.
func (m *Monitor) Logs() []LogEntry {
	return m.store.Logs()
}

// Stats returns the session statistics.
func (m *Monitor) Stats() Stats {
	return m.store.Stats()
}

// Reading returns the current and previous values, their delta and the last
// error message.
func (m *Monitor) Reading() Reading {
	return m.store.Reading()
}

// Delta returns the percentage change between the last two successful
// readings, rounded to one decimal place, or nil when it is undefined.
func (m *Monitor) Delta() *float64 {
	return m.store.Reading().Delta
}

// State returns the poll controller state.
func (m *Monitor) State() State {
	return m.controller.State()
}

// Settings returns the current settings.
func (m *Monitor) Settings() Settings {
	return m.settings.Get()
}

// UpdateSettings applies fn to a copy of the current settings and commits the
// normalised result.
//
// If the committed settings differ from the previous ones, the controller
// re-arms before UpdateSettings returns: a change of endpoint, method, token
// or interval cancels any outstanding request and restarts the timer, and
// disabling monitoring guarantees no further outcome is recorded.
//
// Monitoring may be enabled without an endpoint; the controller then stays
// idle until one is set.
//
// Returns an error and leaves the settings unchanged if the result does not
// validate.
func (m *Monitor) UpdateSettings(fn func(*Settings)) (Settings, error) {
	return m.settings.Update(fn)
}

// StartMonitoring enables polling.
// Returns [ErrEndpointRequired] if no endpoint is configured.
func (m *Monitor) StartMonitoring() error {
	if m.settings.Get().Endpoint == "" {
		return ErrEndpointRequired
	}
	_, err := m.UpdateSettings(func(s *Settings) {
		s.Monitoring = true
	})
	return err
}

// PauseMonitoring disables polling. Samples, logs and statistics are kept.
func (m *Monitor) PauseMonitoring() error {
	_, err := m.UpdateSettings(func(s *Settings) {
		s.Monitoring = false
	})
	return err
}

// ClearLogs empties the log history.
func (m *Monitor) ClearLogs() {
	m.store.ClearLogs()
}

// ResetSession clears samples, statistics and readings. Logs are kept.
func (m *Monitor) ResetSession() {
	m.store.ResetSession()
}

// TestConnection sends one request to the configured endpoint outside the
// polling cadence and returns its log entry.
//
// Both an info entry announcing the test and the outcome are appended to
// the log history; samples and statistics are not touched. TestConnection
// works whether or not monitoring is enabled or the monitor is started.
func (m *Monitor) TestConnection(ctx context.Context) LogEntry {
	return m.controller.TestOnce(ctx, m.settings.Get())
}

// control adapts Monitor to the server's control surface.
type control struct {
	m *Monitor
}

func (c control) Settings() settings.Snapshot {
	return c.m.Settings()
}

func (c control) UpdateSettings(fn func(*settings.Snapshot)) (settings.Snapshot, error) {
	return c.m.UpdateSettings(fn)
}

func (c control) TestConnection(ctx context.Context) store.LogEntry {
	return c.m.TestConnection(ctx)
}

func (c control) State() string {
	return c.m.State().String()
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(T), v T, kind string, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked",
				"panic", r,
				"kind", kind,
			)
		}
	}()
	cb(v)
}
