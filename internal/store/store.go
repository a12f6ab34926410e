package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	// SampleCapacity bounds the rolling sample window.
	SampleCapacity = 50

	// LogCapacity bounds the log history.
	LogCapacity = 100
)

// Sample is a single telemetry reading.
type Sample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome classifies a log entry.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeInfo    Outcome = "info"
	OutcomeWarning Outcome = "warning"
)

// StatusCode is either an HTTP status or a transport error code.
//
// It serialises to a JSON number for HTTP statuses and to a JSON string for
// error codes such as "TIMEOUT" or "ECONNREFUSED".
type StatusCode struct {
	HTTP int
	Code string
}

// HTTPStatus returns a StatusCode holding an HTTP status.
func HTTPStatus(code int) StatusCode {
	return StatusCode{HTTP: code}
}

// ErrorCode returns a StatusCode holding a transport error code.
func ErrorCode(code string) StatusCode {
	return StatusCode{Code: code}
}

// String returns the code, or the HTTP status in decimal.
func (s StatusCode) String() string {
	if s.Code != "" {
		return s.Code
	}
	return strconv.Itoa(s.HTTP)
}

// MarshalJSON implements json.Marshaler.
func (s StatusCode) MarshalJSON() ([]byte, error) {
	if s.Code != "" {
		return json.Marshal(s.Code)
	}
	return json.Marshal(s.HTTP)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StatusCode) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		*s = StatusCode{Code: code}
		return nil
	}
	var status int
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("status must be a number or string: %w", err)
	}
	*s = StatusCode{HTTP: status}
	return nil
}

// LogEntry records the outcome of one poll or probe attempt.
type LogEntry struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Outcome   Outcome    `json:"outcome"`
	Status    StatusCode `json:"status"`
	Message   string     `json:"message"`
	LatencyMs int64      `json:"latency_ms"`

	// Raw is an excerpt of the response payload or error text, if any.
	Raw string `json:"raw,omitempty"`
}

// Record is the complete effect of one applied poll cycle.
//
// The store applies a Record under a single lock so readers never observe a
// log entry without its matching statistics.
type Record struct {
	// Entry is appended to the log history.
	Entry LogEntry

	// Sample is pushed to the window; nil on failure or extraction miss.
	Sample *Sample

	// Success is true when the HTTP exchange succeeded (2xx).
	Success bool

	// Value is the extracted reading on success; nil on extraction miss.
	Value *float64

	// At is when the outcome was observed.
	At time.Time
}

// EventKind identifies the payload of an [Event].
type EventKind string

const (
	EventSample       EventKind = "sample"
	EventLog          EventKind = "log"
	EventStats        EventKind = "stats"
	EventReading      EventKind = "reading"
	EventLogsCleared  EventKind = "logs_cleared"
	EventSessionReset EventKind = "session_reset"
)

// Event is published to subscribers whenever state changes.
type Event struct {
	Kind    EventKind `json:"kind"`
	Sample  *Sample   `json:"sample,omitempty"`
	Log     *LogEntry `json:"log,omitempty"`
	Stats   *Stats    `json:"stats,omitempty"`
	Reading *Reading  `json:"reading,omitempty"`
}

// Store defines the interface for recording poll outcomes and reading state.
//
// Store implementations must be safe for concurrent access. All read methods
// return copies; modifying them does not affect the store.
type Store interface {
	// Record applies the outcome of one poll cycle.
	Record(r Record)

	// AppendLog adds a log entry without touching samples or statistics.
	AppendLog(entry LogEntry)

	// Samples returns the sample window, oldest first.
	Samples() []Sample

	// Logs returns the log history, oldest first.
	Logs() []LogEntry

	// Stats returns the session statistics.
	Stats() Stats

	// Reading returns the current and previous values and their delta.
	Reading() Reading

	// ClearLogs empties the log history.
	ClearLogs()

	// ResetSession clears samples, statistics and readings. Logs are kept.
	ResetSession()

	// Subscribe returns a channel that receives state change events.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a subscription and closes the channel.
	Unsubscribe(ch <-chan Event)
}
