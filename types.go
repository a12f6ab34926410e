package pulsemeter

import (
	"time"

	"github.com/jpalmerr/pulsemeter/internal/poller"
	"github.com/jpalmerr/pulsemeter/internal/settings"
	"github.com/jpalmerr/pulsemeter/internal/store"
)

// Sample is a single telemetry reading in the rolling window.
type Sample = store.Sample

// LogEntry records the outcome of one poll or connection test.
type LogEntry = store.LogEntry

// Outcome classifies a [LogEntry].
type Outcome = store.Outcome

// Outcome values.
const (
	OutcomeSuccess = store.OutcomeSuccess
	OutcomeError   = store.OutcomeError
	OutcomeInfo    = store.OutcomeInfo
	OutcomeWarning = store.OutcomeWarning
)

// StatusCode is either an HTTP status or a transport error code such as
// "TIMEOUT" or "ECONNREFUSED".
type StatusCode = store.StatusCode

// Stats holds the session counters: total reads and session start.
type Stats = store.Stats

// Reading is the latest value, the one before it, and the percentage change.
type Reading = store.Reading

// Settings is an immutable snapshot of the monitoring configuration.
type Settings = settings.Snapshot

// State is the poll controller state.
type State = poller.State

// State values.
const (
	// StateIdle means no timer is armed.
	StateIdle = poller.StateIdle

	// StateArmed means the timer is running and no request is outstanding.
	StateArmed = poller.StateArmed

	// StateInFlight means a request is outstanding.
	StateInFlight = poller.StateInFlight
)

const (
	// SampleCapacity bounds the rolling sample window.
	SampleCapacity = store.SampleCapacity

	// LogCapacity bounds the log history.
	LogCapacity = store.LogCapacity

	// MinInterval is the shortest polling interval; shorter values are raised to it.
	MinInterval = settings.MinInterval

	// DefaultInterval is used when no interval is configured.
	DefaultInterval = settings.DefaultInterval
)

// DefaultSettings returns the settings used when none are configured:
// GET, a 2s interval, no endpoint and monitoring disabled.
func DefaultSettings() Settings {
	return settings.Default()
}

// FormatUptime renders d as HH:MM:SS.
func FormatUptime(d time.Duration) string {
	return store.FormatUptime(d)
}
