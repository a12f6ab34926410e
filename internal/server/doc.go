// Package server provides the HTTP surface for PulseMeter.
//
// This package is internal to PulseMeter and serves the embedded dashboard,
// a JSON read/control API, live updates over Server-Sent Events and
// WebSocket, and the Prometheus scrape endpoint.
//
// Endpoints:
//
//   - GET /: Dashboard HTML with title substitution
//   - GET /api/snapshot: Settings, state, samples, logs, stats and reading
//   - GET /api/samples, GET /api/stats: Individual read views
//   - GET|DELETE /api/logs: Log history; DELETE clears it
//   - GET|PUT /api/settings: Monitoring settings (auth token redacted)
//   - POST /api/monitoring: Start or pause monitoring
//   - POST /api/test: One-off connection test
//   - POST /api/session/reset: Clear samples and statistics
//   - GET /api/sse: Server-Sent Events stream of store events
//   - GET /api/ws: WebSocket stream of store events
//   - GET /metrics: Prometheus metrics
//
// The server supports graceful shutdown via context cancellation. Streaming
// handlers use write deadlines so a stalled client cannot hold a goroutine.
package server
