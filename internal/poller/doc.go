// Package poller drives periodic polling of a single telemetry endpoint.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout, size limit and
//     transport error classification
//   - [Controller]: the Idle/Armed/InFlight state machine that owns the
//     polling cadence and discards superseded completions
//   - [Metrics]: Prometheus instruments fed by the controller
//
// Users of the pulsemeter library should not need to interact with this
// package directly. Configuration is done through the main pulsemeter package.
package poller
