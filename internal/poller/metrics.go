package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments updated by a [Controller].
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	polls     *prometheus.CounterVec
	stale     prometheus.Counter
	latency   prometheus.Histogram
	lastValue prometheus.Gauge
	state     prometheus.Gauge
}

// NewMetrics creates the poller instruments and registers them with reg.
// If reg is nil the instruments are created but not registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsemeter_polls_total",
			Help: "Poll attempts applied to the store, by outcome.",
		}, []string{"outcome"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsemeter_stale_completions_total",
			Help: "Poll completions discarded because a newer cycle superseded them.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsemeter_poll_latency_seconds",
			Help:    "Latency of applied poll attempts.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		lastValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsemeter_last_value",
			Help: "Most recent extracted telemetry value.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsemeter_controller_state",
			Help: "Controller state: 0 idle, 1 armed, 2 in flight.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.polls, m.stale, m.latency, m.lastValue, m.state} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observePoll(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(outcome).Inc()
	m.latency.Observe(latency.Seconds())
}

func (m *Metrics) observeValue(v float64) {
	if m == nil {
		return
	}
	m.lastValue.Set(v)
}

func (m *Metrics) observeStale() {
	if m == nil {
		return
	}
	m.stale.Inc()
}

func (m *Metrics) observeState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
