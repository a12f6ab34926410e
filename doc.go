// Package pulsemeter provides an embeddable live monitor for a single IoT
// telemetry endpoint.
//
// PulseMeter polls one loosely specified REST endpoint at a fixed cadence,
// pulls a numeric reading and a timestamp out of whatever JSON the device
// returns, and keeps bounded state for a live display: a rolling window of
// the last 50 samples, a history of the last 100 log entries, and session
// statistics (total reads, session start, percentage change between the two
// most recent readings).
//
// # Quick Start
//
//	m, _ := pulsemeter.New(
//	    pulsemeter.WithEndpoint("http://192.168.1.40/api/sensor"),
//	    pulsemeter.WithInterval(2 * time.Second),
//	    pulsemeter.WithMonitoring(true),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// The dashboard is then available at http://localhost:8080.
//
// # Settings
//
// Endpoint, method, bearer token, interval and the monitoring switch form an
// immutable [Settings] snapshot. [Monitor.UpdateSettings] commits a new one;
// the poll controller re-arms before the call returns. Changing the endpoint
// starts a new session. Pausing and resuming does not. Intervals below
// [MinInterval] are raised to it.
//
// # Value Extraction
//
// [DefaultValueExtractor] handles the common device shapes: a bare number,
// objects keyed value/temp/temperature/humidity (and their Indonesian
// equivalents suhu/kelembaban), payloads wrapped in "data", and arrays.
// [JSONPathExtractor], [RegexExtractor] and [FirstMatch] cover the rest.
//
// # Consistency
//
// Every request carries the generation it was issued under. When the timer
// fires again, the settings change, or monitoring is paused, the outstanding
// request is cancelled and its generation retired, so a late response can
// never write samples, logs or statistics.
//
// # Architecture
//
// PulseMeter consists of several internal packages (under internal/):
//
//   - internal/extract: JSON decoding and value/timestamp resolution
//   - internal/store: Bounded rings, session statistics and pub/sub
//   - internal/settings: Settings snapshots and their observable store
//   - internal/poller: HTTP client, poll controller and Prometheus metrics
//   - internal/server: REST API, Server-Sent Events and WebSocket push
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pulsemeter
