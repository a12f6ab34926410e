package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jpalmerr/pulsemeter/internal/settings"
	"github.com/jpalmerr/pulsemeter/internal/store"
)

const sensorBody = `{"temperature": 25.5, "humidity": 60, "timestamp": "2026-02-05T00:00:00Z"}`

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher hands each call to respond with its zero-based call index.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []Request
	respond func(ctx context.Context, n int) Response
}

func (f *fakeFetcher) Fetch(ctx context.Context, req Request) Response {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(ctx, n)
}

func (f *fakeFetcher) call(i int) Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func okResponse(body string) Response {
	return Response{Body: []byte(body), StatusCode: 200, Latency: 12 * time.Millisecond}
}

// manualTicker fires only when the test sends on it.
type manualTicker struct {
	ch       chan time.Time
	interval time.Duration
	stopped  atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (f *tickers) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk := &manualTicker{ch: make(chan time.Time), interval: d}
	f.all = append(f.all, tk)
	return tk
}

func (f *tickers) last(t *testing.T) *manualTicker {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.all) == 0 {
		t.Fatal("no ticker created")
	}
	return f.all[len(f.all)-1]
}

func (f *tickers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

// tick delivers one tick; it returns once the loop has received it.
func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not accept tick")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type harness struct {
	ctrl    *Controller
	store   *store.MemoryStore
	fetcher *fakeFetcher
	tickers *tickers
	metrics *Metrics
}

func newHarness(t *testing.T, respond func(ctx context.Context, n int) Response, mutate ...func(*Options)) *harness {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	h := &harness{
		store:   store.NewMemoryStore(),
		fetcher: &fakeFetcher{respond: respond},
		tickers: &tickers{},
		metrics: m,
	}
	opts := Options{
		Fetcher:   h.fetcher,
		Store:     h.store,
		Logger:    testLogger(),
		Metrics:   m,
		NewTicker: h.tickers.New,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h.ctrl = NewController(opts)
	h.ctrl.Start(context.Background())
	t.Cleanup(h.ctrl.Stop)
	return h
}

func (h *harness) waitLogs(t *testing.T, n int) {
	t.Helper()
	waitFor(t, fmt.Sprintf("%d log entries", n), func() bool { return len(h.store.Logs()) >= n })
}

func (h *harness) waitStale(t *testing.T, n float64) {
	t.Helper()
	waitFor(t, "stale completion", func() bool { return testutil.ToFloat64(h.metrics.stale) >= n })
}

func active(endpoint string) settings.Snapshot {
	return settings.Snapshot{
		Endpoint:   endpoint,
		Method:     "GET",
		Interval:   2 * time.Second,
		Monitoring: true,
	}
}

func TestController_ThreeTicks(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(sensorBody) })

	h.ctrl.Apply(active("http://sensor.local/api"))
	h.waitLogs(t, 1)

	tk := h.tickers.last(t)
	if tk.interval != 2*time.Second {
		t.Errorf("ticker interval = %v, want 2s", tk.interval)
	}
	tk.tick(t)
	h.waitLogs(t, 2)
	tk.tick(t)
	h.waitLogs(t, 3)

	samples := h.store.Samples()
	if len(samples) != 3 {
		t.Fatalf("len(Samples()) = %d, want 3", len(samples))
	}
	want := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	for i, s := range samples {
		if s.Value != 25.5 {
			t.Errorf("samples[%d].Value = %v, want 25.5", i, s.Value)
		}
		if !s.Timestamp.Equal(want) {
			t.Errorf("samples[%d].Timestamp = %v, want %v", i, s.Timestamp, want)
		}
		if i > 0 && s.Timestamp.Before(samples[i-1].Timestamp) {
			t.Errorf("samples[%d] timestamp went backwards", i)
		}
	}
	if got := h.store.Stats().TotalReads; got != 3 {
		t.Errorf("TotalReads = %d, want 3", got)
	}
	for _, e := range h.store.Logs() {
		if e.Outcome != store.OutcomeSuccess || e.Message != "Data received: 25.5" {
			t.Errorf("log entry = %s %q, want success \"Data received: 25.5\"", e.Outcome, e.Message)
		}
	}
}

func TestController_TimeoutThenSuccess(t *testing.T) {
	h := newHarness(t, func(_ context.Context, n int) Response {
		if n == 0 {
			return Response{
				Err:     fmt.Errorf("request failed: %w", context.DeadlineExceeded),
				ErrCode: ErrCodeTimeout,
				Latency: 5001 * time.Millisecond,
			}
		}
		return okResponse(`{"value": 27.1}`)
	})

	h.ctrl.Apply(active("http://sensor.local/api"))
	h.waitLogs(t, 1)
	h.tickers.last(t).tick(t)
	h.waitLogs(t, 2)

	logs := h.store.Logs()
	if logs[0].Outcome != store.OutcomeError {
		t.Errorf("logs[0].Outcome = %s, want error", logs[0].Outcome)
	}
	if logs[0].LatencyMs < 5000 {
		t.Errorf("logs[0].LatencyMs = %d, want >= 5000", logs[0].LatencyMs)
	}
	if logs[0].Status.Code != ErrCodeTimeout {
		t.Errorf("logs[0].Status = %v, want %s", logs[0].Status, ErrCodeTimeout)
	}
	if logs[0].Message != "timeout of 5000ms exceeded" {
		t.Errorf("logs[0].Message = %q", logs[0].Message)
	}
	if logs[1].Outcome != store.OutcomeSuccess {
		t.Errorf("logs[1].Outcome = %s, want success", logs[1].Outcome)
	}
	if got := len(h.store.Samples()); got != 1 {
		t.Errorf("len(Samples()) = %d, want 1", got)
	}
	if got := h.store.Stats().TotalReads; got != 2 {
		t.Errorf("TotalReads = %d, want 2", got)
	}
}

func TestController_LateCompletionIgnored(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(_ context.Context, n int) Response {
		if n == 0 {
			// ignores cancellation entirely
			<-release
			return okResponse(`{"value": 1}`)
		}
		return okResponse(`{"value": 2}`)
	})

	h.ctrl.Apply(active("http://sensor.local/api"))
	waitFor(t, "first request", func() bool { return h.fetcher.callCount() == 1 })
	if got := h.ctrl.State(); got != StateInFlight {
		t.Errorf("State() = %s, want in_flight", got)
	}

	h.tickers.last(t).tick(t)
	h.waitLogs(t, 1)

	close(release)
	h.waitStale(t, 1)

	logs := h.store.Logs()
	if len(logs) != 1 || logs[0].Message != "Data received: 2" {
		t.Fatalf("Logs() = %+v, want only the second cycle's entry", logs)
	}
	samples := h.store.Samples()
	if len(samples) != 1 || samples[0].Value != 2 {
		t.Errorf("Samples() = %+v, want one sample of 2", samples)
	}
	if got := h.store.Stats().TotalReads; got != 1 {
		t.Errorf("TotalReads = %d, want 1", got)
	}
	if got := h.ctrl.State(); got != StateArmed {
		t.Errorf("State() = %s, want armed", got)
	}
}

func TestController_SupersededRequestIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, n int) Response {
		if n == 0 {
			<-ctx.Done()
			close(cancelled)
			return Response{Err: ctx.Err(), ErrCode: Classify(ctx.Err())}
		}
		return okResponse(`{"value": 3}`)
	})

	h.ctrl.Apply(active("http://sensor.local/api"))
	waitFor(t, "first request", func() bool { return h.fetcher.callCount() == 1 })
	h.tickers.last(t).tick(t)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request context was not cancelled")
	}
	h.waitLogs(t, 1)
	h.waitStale(t, 1)

	for _, e := range h.store.Logs() {
		if e.Outcome != store.OutcomeSuccess {
			t.Errorf("unexpected %s entry %q from superseded cycle", e.Outcome, e.Message)
		}
	}
}

func TestController_DisableMidCycle(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(_ context.Context, n int) Response {
		<-release
		return okResponse(`{"value": 1}`)
	})

	snap := active("http://sensor.local/api")
	h.ctrl.Apply(snap)
	waitFor(t, "first request", func() bool { return h.fetcher.callCount() == 1 })

	snap.Monitoring = false
	h.ctrl.Apply(snap)

	if got := h.ctrl.State(); got != StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
	if !h.tickers.last(t).stopped.Load() {
		t.Error("ticker not stopped on disable")
	}

	close(release)
	h.waitStale(t, 1)

	if got := len(h.store.Logs()); got != 0 {
		t.Errorf("len(Logs()) = %d after disable, want 0", got)
	}
	if got := h.store.Stats().TotalReads; got != 0 {
		t.Errorf("TotalReads = %d, want 0", got)
	}
}

func TestController_InactiveSnapshotStaysIdle(t *testing.T) {
	tests := []struct {
		name string
		snap settings.Snapshot
	}{
		{"monitoring off", settings.Snapshot{Endpoint: "http://x", Method: "GET", Interval: time.Second}},
		{"empty endpoint", settings.Snapshot{Method: "GET", Interval: time.Second, Monitoring: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(context.Context, int) Response { return okResponse(`1`) })

			h.ctrl.Apply(tt.snap)

			if got := h.ctrl.State(); got != StateIdle {
				t.Errorf("State() = %s, want idle", got)
			}
			if h.tickers.count() != 0 {
				t.Error("ticker created for inactive snapshot")
			}
			if h.fetcher.callCount() != 0 {
				t.Error("request issued for inactive snapshot")
			}
		})
	}
}

func TestController_ConfigChangeRearms(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`{"value": 1}`) })

	snap := active("http://sensor.local/api")
	h.ctrl.Apply(snap)
	h.waitLogs(t, 1)
	first := h.tickers.last(t)

	snap.Interval = 5 * time.Second
	h.ctrl.Apply(snap)
	h.waitLogs(t, 2)

	if !first.stopped.Load() {
		t.Error("old ticker not stopped")
	}
	if got := h.tickers.last(t).interval; got != 5*time.Second {
		t.Errorf("new ticker interval = %v, want 5s", got)
	}
	if got := h.store.Stats().TotalReads; got != 2 {
		t.Errorf("TotalReads = %d, want 2 (interval change keeps the session)", got)
	}
}

func TestController_ClampsInterval(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`1`) })

	snap := active("http://sensor.local/api")
	snap.Interval = 10 * time.Millisecond
	h.ctrl.Apply(snap)
	h.waitLogs(t, 1)

	if got := h.tickers.last(t).interval; got != settings.MinInterval {
		t.Errorf("ticker interval = %v, want %v", got, settings.MinInterval)
	}
}

func TestController_EndpointChangeResetsSession(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`{"value": 1}`) })

	h.ctrl.Apply(active("http://a.local/api"))
	h.waitLogs(t, 1)
	h.tickers.last(t).tick(t)
	h.waitLogs(t, 2)

	h.ctrl.Apply(active("http://b.local/api"))
	h.waitLogs(t, 3)

	if got := h.store.Stats().TotalReads; got != 1 {
		t.Errorf("TotalReads = %d, want 1 after endpoint change", got)
	}
	if got := len(h.store.Samples()); got != 1 {
		t.Errorf("len(Samples()) = %d, want 1 after endpoint change", got)
	}
	if got := len(h.store.Logs()); got != 3 {
		t.Errorf("len(Logs()) = %d, want 3 (logs survive)", got)
	}
	if got := h.fetcher.call(2).URL; got != "http://b.local/api" {
		t.Errorf("third request URL = %q", got)
	}
}

func TestController_PauseResumeKeepsStartTime(t *testing.T) {
	var clock atomic.Int64
	base := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	h := newHarness(t,
		func(context.Context, int) Response { return okResponse(`{"value": 1}`) },
		func(o *Options) {
			o.Now = func() time.Time { return base.Add(time.Duration(clock.Add(1)) * time.Second) }
		},
	)

	snap := active("http://sensor.local/api")
	h.ctrl.Apply(snap)
	h.waitLogs(t, 1)
	start := *h.store.Stats().StartTime

	snap.Monitoring = false
	h.ctrl.Apply(snap)
	snap.Monitoring = true
	h.ctrl.Apply(snap)
	h.waitLogs(t, 2)

	stats := h.store.Stats()
	if stats.TotalReads != 2 {
		t.Errorf("TotalReads = %d, want 2", stats.TotalReads)
	}
	if !stats.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want unchanged %v", stats.StartTime, start)
	}
}

func TestController_HTTPErrorStatus(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response {
		return Response{Body: []byte(`{"error":"boom"}`), StatusCode: 503, Latency: time.Millisecond}
	})

	h.ctrl.Apply(active("http://sensor.local/api"))
	h.waitLogs(t, 1)

	e := h.store.Logs()[0]
	if e.Outcome != store.OutcomeError || e.Status.HTTP != 503 || e.Message != "HTTP 503" {
		t.Errorf("entry = %+v, want error 503 \"HTTP 503\"", e)
	}
	if e.Raw != `{"error":"boom"}` {
		t.Errorf("Raw = %q", e.Raw)
	}
	if got := len(h.store.Samples()); got != 0 {
		t.Errorf("len(Samples()) = %d, want 0", got)
	}
	if got := h.store.Reading().LastError; got != "HTTP 503" {
		t.Errorf("LastError = %q, want HTTP 503", got)
	}
	if got := testutil.ToFloat64(h.metrics.polls.WithLabelValues("error")); got != 1 {
		t.Errorf("error polls metric = %v, want 1", got)
	}
}

func TestController_NoNumericValue(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`{"message": "ok"}`) })

	h.ctrl.Apply(active("http://sensor.local/api"))
	h.waitLogs(t, 1)

	e := h.store.Logs()[0]
	if e.Outcome != store.OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", e.Outcome)
	}
	if e.Message != "Response received (no numeric value found)" {
		t.Errorf("Message = %q", e.Message)
	}
	if got := len(h.store.Samples()); got != 0 {
		t.Errorf("len(Samples()) = %d, want 0", got)
	}
	if got := h.store.Stats().TotalReads; got != 1 {
		t.Errorf("TotalReads = %d, want 1", got)
	}
}

func TestController_CustomExtractor(t *testing.T) {
	h := newHarness(t,
		func(context.Context, int) Response { return okResponse(`{"value": 1, "reading": 42}`) },
		func(o *Options) {
			o.Extractor = func(body []byte) (float64, bool) {
				if strings.Contains(string(body), "reading") {
					return 42, true
				}
				return 0, false
			}
		},
	)

	h.ctrl.Apply(active("http://sensor.local/api"))
	h.waitLogs(t, 1)

	samples := h.store.Samples()
	if len(samples) != 1 || samples[0].Value != 42 {
		t.Errorf("Samples() = %+v, want one sample of 42", samples)
	}
	if got := testutil.ToFloat64(h.metrics.lastValue); got != 42 {
		t.Errorf("last value metric = %v, want 42", got)
	}
}

// TestController_ExtractorPanicRecovery verifies that a panicking extractor
// does not crash the loop; the attempt is recorded as a miss.
func TestController_ExtractorPanicRecovery(t *testing.T) {
	h := newHarness(t,
		func(context.Context, int) Response { return okResponse(`{"value": 1}`) },
		func(o *Options) {
			o.Extractor = func([]byte) (float64, bool) { panic("extractor panic: simulated failure") }
		},
	)

	h.ctrl.Apply(active("http://sensor.local/api"))
	h.waitLogs(t, 1)
	h.tickers.last(t).tick(t)
	h.waitLogs(t, 2)

	for _, e := range h.store.Logs() {
		if e.Outcome != store.OutcomeSuccess || e.Message != msgNoValue {
			t.Errorf("entry = %s %q, want success miss", e.Outcome, e.Message)
		}
	}
	if got := len(h.store.Samples()); got != 0 {
		t.Errorf("len(Samples()) = %d, want 0", got)
	}
}

func TestController_TestOnce(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`{"value":1}`) })

	entry := h.ctrl.TestOnce(context.Background(), settings.Snapshot{
		Endpoint:  "http://sensor.local/api",
		AuthToken: "secret",
	})

	if entry.Outcome != store.OutcomeSuccess || entry.Message != "Connection successful!" {
		t.Errorf("entry = %s %q, want success \"Connection successful!\"", entry.Outcome, entry.Message)
	}
	if entry.Raw != "{\n  \"value\": 1\n}" {
		t.Errorf("Raw = %q, want indented JSON", entry.Raw)
	}

	logs := h.store.Logs()
	if len(logs) != 2 {
		t.Fatalf("len(Logs()) = %d, want 2", len(logs))
	}
	if logs[0].Outcome != store.OutcomeInfo || logs[0].Message != "Testing connection to http://sensor.local/api" {
		t.Errorf("logs[0] = %s %q", logs[0].Outcome, logs[0].Message)
	}
	if logs[1].ID != entry.ID {
		t.Error("returned entry is not the logged outcome")
	}

	if got := len(h.store.Samples()); got != 0 {
		t.Errorf("len(Samples()) = %d, want 0", got)
	}
	if got := h.store.Stats().TotalReads; got != 0 {
		t.Errorf("TotalReads = %d, want 0", got)
	}
	if got := h.ctrl.State(); got != StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
	if h.tickers.count() != 0 {
		t.Error("TestOnce created a ticker")
	}

	req := h.fetcher.call(0)
	if req.Method != "GET" || req.AuthToken != "secret" || req.Timeout != DefaultTimeout {
		t.Errorf("request = %+v", req)
	}
}

func TestController_TestOnceRequiresEndpoint(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`1`) })

	entry := h.ctrl.TestOnce(context.Background(), settings.Snapshot{})

	if entry.Outcome != store.OutcomeWarning {
		t.Errorf("Outcome = %s, want warning", entry.Outcome)
	}
	if h.fetcher.callCount() != 0 {
		t.Error("request issued without endpoint")
	}
}

func TestController_TestOnceWhileMonitoring(t *testing.T) {
	h := newHarness(t, func(context.Context, int) Response { return okResponse(`{"value": 1}`) })

	snap := active("http://sensor.local/api")
	h.ctrl.Apply(snap)
	h.waitLogs(t, 1)

	h.ctrl.TestOnce(context.Background(), snap)
	h.tickers.last(t).tick(t)
	h.waitLogs(t, 4)

	if got := h.store.Stats().TotalReads; got != 2 {
		t.Errorf("TotalReads = %d, want 2", got)
	}
	if got := h.tickers.count(); got != 1 {
		t.Errorf("tickers created = %d, want 1", got)
	}
}

// TestController_StopBeforeStart verifies that calling Stop() on a controller
// that was never started does not panic and is a safe no-op.
func TestController_StopBeforeStart(t *testing.T) {
	c := NewController(Options{Logger: testLogger()})

	c.Stop()
	c.Start(context.Background())
	c.Apply(active("http://sensor.local/api"))

	if got := c.State(); got != StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
}

// TestController_StartStopIdempotent verifies Start and Stop can be repeated
// without panic or deadlock.
func TestController_StartStopIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(context.Context, int) Response { return okResponse(`1`) }}
	c := NewController(Options{Fetcher: fetcher, Logger: testLogger(), NewTicker: (&tickers{}).New})

	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}

func TestController_ApplyBeforeStart(t *testing.T) {
	s := store.NewMemoryStore()
	fetcher := &fakeFetcher{respond: func(context.Context, int) Response { return okResponse(`{"value": 9}`) }}
	c := NewController(Options{Fetcher: fetcher, Store: s, Logger: testLogger(), NewTicker: (&tickers{}).New})
	defer c.Stop()

	c.Apply(active("http://sensor.local/api"))
	if fetcher.callCount() != 0 {
		t.Fatal("request issued before Start")
	}

	c.Start(context.Background())
	waitFor(t, "first outcome", func() bool { return len(s.Logs()) == 1 })
}

func TestController_StopCancelsInFlight(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, n int) Response {
		<-ctx.Done()
		return Response{Err: ctx.Err(), ErrCode: Classify(ctx.Err())}
	})

	h.ctrl.Apply(active("http://sensor.local/api"))
	waitFor(t, "first request", func() bool { return h.fetcher.callCount() == 1 })

	done := make(chan struct{})
	go func() {
		h.ctrl.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return with a request in flight")
	}
	if got := len(h.store.Logs()); got != 0 {
		t.Errorf("len(Logs()) = %d, want 0", got)
	}
	if got := h.ctrl.State(); got != StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
}

func TestController_ParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(Options{
		Fetcher:   &fakeFetcher{respond: func(context.Context, int) Response { return okResponse(`1`) }},
		Logger:    testLogger(),
		NewTicker: (&tickers{}).New,
	})
	c.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after parent context cancellation")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:     "idle",
		StateArmed:    "armed",
		StateInFlight: "in_flight",
		State(9):      "State(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
