package settings

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// MinInterval is the lowest polling interval a snapshot may hold.
	MinInterval = 500 * time.Millisecond

	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 2 * time.Second
)

// Snapshot is an immutable view of the monitoring configuration.
type Snapshot struct {
	Endpoint   string        `json:"endpoint"`
	Method     string        `json:"method"`
	AuthToken  string        `json:"auth_token,omitempty"`
	Interval   time.Duration `json:"interval"`
	Monitoring bool          `json:"monitoring"`
}

// Default returns a snapshot with no endpoint, GET, the default interval and
// monitoring disabled.
func Default() Snapshot {
	return Snapshot{
		Method:   http.MethodGet,
		Interval: DefaultInterval,
	}
}

// Active reports whether the snapshot should drive polling.
func (s Snapshot) Active() bool {
	return s.Monitoring && s.Endpoint != ""
}

// SameTarget reports whether two snapshots poll the same request at the same
// cadence. The monitoring flag is not compared.
func (s Snapshot) SameTarget(o Snapshot) bool {
	return s.Endpoint == o.Endpoint &&
		s.Method == o.Method &&
		s.AuthToken == o.AuthToken &&
		s.Interval == o.Interval
}

// Normalize returns a copy with the method upper-cased and defaulted, the
// endpoint trimmed and the interval clamped to [MinInterval].
func (s Snapshot) Normalize() Snapshot {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.Method = strings.ToUpper(strings.TrimSpace(s.Method))
	if s.Method == "" {
		s.Method = http.MethodGet
	}
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	if s.Interval < MinInterval {
		s.Interval = MinInterval
	}
	return s
}

// Validate checks that the snapshot can be polled.
// An empty endpoint is valid; it simply keeps the controller idle.
func (s Snapshot) Validate() error {
	var errs []error

	if s.Endpoint != "" {
		u, err := url.Parse(s.Endpoint)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("endpoint: invalid URL: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("endpoint: URL scheme must be http or https, got %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, errors.New("endpoint: URL must include a host"))
		}
	}

	switch s.Method {
	case http.MethodGet, http.MethodPost:
	default:
		errs = append(errs, fmt.Errorf("method: must be GET or POST, got %q", s.Method))
	}

	if s.Interval < MinInterval {
		errs = append(errs, fmt.Errorf("interval: must be at least %s, got %s", MinInterval, s.Interval))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with the auth token masked.
func (s Snapshot) Redacted() Snapshot {
	if s.AuthToken != "" {
		s.AuthToken = "********"
	}
	return s
}
