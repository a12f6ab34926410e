package pulsemeter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// doublingSensor answers 10, 20, 40, ... so every delta is +100%.
func doublingSensor(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value": %d, "timestamp": "2026-02-05T12:00:00Z"}`, 10<<(n-1))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func constantSensor(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// startMonitor runs m.Start in the background and stops it when the test ends.
func startMonitor(t *testing.T, m *Monitor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Start() did not return after cancel")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestMonitor_PollsAndTracksSession(t *testing.T) {
	sensor, _ := doublingSensor(t)

	m, err := New(
		WithEndpoint(sensor.URL),
		WithInterval(MinInterval),
		WithMonitoring(true),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)

	waitFor(t, "two samples", func() bool { return len(m.Samples()) >= 2 })

	samples := m.Samples()
	if samples[0].Value != 10 || samples[1].Value != 20 {
		t.Errorf("first samples = %v, %v, want 10, 20", samples[0].Value, samples[1].Value)
	}
	want := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)
	if !samples[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", samples[0].Timestamp, want)
	}

	if d := m.Delta(); d == nil || *d != 100 {
		t.Errorf("Delta() = %v, want 100", d)
	}

	stats := m.Stats()
	if stats.TotalReads < 2 {
		t.Errorf("TotalReads = %d, want >= 2", stats.TotalReads)
	}
	if stats.StartTime == nil {
		t.Error("StartTime = nil after first outcome")
	}

	logs := m.Logs()
	if logs[0].Outcome != OutcomeSuccess || logs[0].Message != "Data received: 10" {
		t.Errorf("first log = %+v, want success with Data received: 10", logs[0])
	}
	if logs[0].Status.HTTP != http.StatusOK {
		t.Errorf("Status = %v, want 200", logs[0].Status)
	}
	if m.State() == StateIdle {
		t.Error("State() = idle while monitoring")
	}
}

func TestMonitor_PauseStopsPolling(t *testing.T) {
	sensor, _ := doublingSensor(t)

	m, err := New(
		WithEndpoint(sensor.URL),
		WithMonitoring(true),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)

	waitFor(t, "first read", func() bool { return m.Stats().TotalReads >= 1 })

	if err := m.PauseMonitoring(); err != nil {
		t.Fatalf("PauseMonitoring() error = %v", err)
	}
	if m.State() != StateIdle {
		t.Errorf("State() after pause = %v, want idle", m.State())
	}

	reads := m.Stats().TotalReads
	time.Sleep(3 * MinInterval)

	if got := m.Stats().TotalReads; got != reads {
		t.Errorf("TotalReads changed while paused: %d -> %d", reads, got)
	}
	if len(m.Samples()) == 0 {
		t.Error("samples cleared by pause")
	}
}

func TestMonitor_ResumeKeepsSessionStart(t *testing.T) {
	sensor, _ := doublingSensor(t)

	m, err := New(
		WithEndpoint(sensor.URL),
		WithMonitoring(true),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)

	waitFor(t, "first read", func() bool { return m.Stats().TotalReads >= 1 })
	start := *m.Stats().StartTime

	if err := m.PauseMonitoring(); err != nil {
		t.Fatalf("PauseMonitoring() error = %v", err)
	}
	reads := m.Stats().TotalReads
	if err := m.StartMonitoring(); err != nil {
		t.Fatalf("StartMonitoring() error = %v", err)
	}

	waitFor(t, "read after resume", func() bool { return m.Stats().TotalReads > reads })
	if got := *m.Stats().StartTime; !got.Equal(start) {
		t.Errorf("StartTime after resume = %v, want %v", got, start)
	}
}

func TestMonitor_EndpointChangeStartsNewSession(t *testing.T) {
	first := constantSensor(t, `{"value": 1}`)
	second := constantSensor(t, `{"value": 99}`)

	m, err := New(
		WithEndpoint(first.URL),
		WithMonitoring(true),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)

	waitFor(t, "sample from first endpoint", func() bool { return len(m.Samples()) >= 1 })

	if _, err := m.UpdateSettings(func(s *Settings) { s.Endpoint = second.URL }); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	waitFor(t, "sample from second endpoint", func() bool { return len(m.Samples()) >= 1 })

	for _, s := range m.Samples() {
		if s.Value != 99 {
			t.Errorf("sample %v survived endpoint change", s.Value)
		}
	}
	if r := m.Reading(); r.Previous != nil {
		t.Errorf("Previous = %v, want nil in new session", *r.Previous)
	}
}

func TestMonitor_InvalidUpdateLeavesSettings(t *testing.T) {
	m, err := New(WithEndpoint("http://localhost:3001/api/sensor"), WithoutServer())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := m.Settings()

	if _, err := m.UpdateSettings(func(s *Settings) { s.Method = "PATCH" }); err == nil {
		t.Fatal("UpdateSettings() expected error, got nil")
	}
	if got := m.Settings(); got != before {
		t.Errorf("Settings() = %+v, want unchanged %+v", got, before)
	}
}

func TestMonitor_StartMonitoringRequiresEndpoint(t *testing.T) {
	m, err := New(WithoutServer())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.StartMonitoring(); err != ErrEndpointRequired {
		t.Errorf("StartMonitoring() error = %v, want %v", err, ErrEndpointRequired)
	}
	if m.Settings().Monitoring {
		t.Error("Monitoring enabled without endpoint")
	}
}

func TestMonitor_FailedPollsAreLogged(t *testing.T) {
	sensor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer sensor.Close()

	m, err := New(
		WithEndpoint(sensor.URL),
		WithMonitoring(true),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)

	waitFor(t, "failed read", func() bool { return m.Stats().TotalReads >= 1 })

	entry := m.Logs()[0]
	if entry.Outcome != OutcomeError || entry.Message != "HTTP 503" {
		t.Errorf("log = %+v, want error HTTP 503", entry)
	}
	if len(m.Samples()) != 0 {
		t.Errorf("len(Samples()) = %d, want 0", len(m.Samples()))
	}
	if got := m.Reading().LastError; got != "HTTP 503" {
		t.Errorf("LastError = %q, want HTTP 503", got)
	}
}

func TestMonitor_TestConnection(t *testing.T) {
	sensor := constantSensor(t, `{"temp": 21.5}`)

	m, err := New(WithEndpoint(sensor.URL), WithLogger(testLogger()), WithoutServer())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entry := m.TestConnection(context.Background())

	if entry.Outcome != OutcomeSuccess || entry.Message != "Connection successful!" {
		t.Errorf("TestConnection() = %+v, want success", entry)
	}
	logs := m.Logs()
	if len(logs) != 2 {
		t.Fatalf("len(Logs()) = %d, want 2", len(logs))
	}
	if logs[0].Outcome != OutcomeInfo || !strings.Contains(logs[0].Message, sensor.URL) {
		t.Errorf("first log = %+v, want info announcing %s", logs[0], sensor.URL)
	}
	if got := m.Stats().TotalReads; got != 0 {
		t.Errorf("TotalReads = %d, want 0 after connection test", got)
	}
	if got := len(m.Samples()); got != 0 {
		t.Errorf("len(Samples()) = %d, want 0 after connection test", got)
	}
}

func TestMonitor_TestConnectionWithoutEndpoint(t *testing.T) {
	m, err := New(WithLogger(testLogger()), WithoutServer())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entry := m.TestConnection(context.Background())

	if entry.Outcome != OutcomeWarning {
		t.Errorf("Outcome = %s, want warning", entry.Outcome)
	}
	if entry.Message != "Endpoint URL is required" {
		t.Errorf("Message = %q", entry.Message)
	}
}

func TestMonitor_ClearLogsAndResetSession(t *testing.T) {
	sensor := constantSensor(t, `{"value": 5}`)

	m, err := New(
		WithEndpoint(sensor.URL),
		WithMonitoring(true),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)
	waitFor(t, "first sample", func() bool { return len(m.Samples()) >= 1 })
	if err := m.PauseMonitoring(); err != nil {
		t.Fatalf("PauseMonitoring() error = %v", err)
	}

	m.ClearLogs()
	if got := len(m.Logs()); got != 0 {
		t.Errorf("len(Logs()) = %d, want 0", got)
	}
	if got := len(m.Samples()); got == 0 {
		t.Error("ClearLogs() removed samples")
	}

	m.ResetSession()
	if got := len(m.Samples()); got != 0 {
		t.Errorf("len(Samples()) = %d, want 0", got)
	}
	if st := m.Stats(); st.TotalReads != 0 || st.StartTime != nil {
		t.Errorf("Stats() = %+v, want zero", st)
	}
}

func TestMonitor_StartTwice(t *testing.T) {
	m, err := New(WithLogger(testLogger()), WithoutServer())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(ctx); err == nil {
		t.Error("second Start() error = nil, want error")
	}
}

func TestMonitor_ServesDashboardAndAPI(t *testing.T) {
	sensor := constantSensor(t, `{"value": 42}`)

	m, err := New(
		WithEndpoint(sensor.URL),
		WithMonitoring(true),
		WithPort(19210),
		WithTitle("Greenhouse"),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startMonitor(t, m)
	waitFor(t, "first sample", func() bool { return len(m.Samples()) >= 1 })

	base := "http://localhost:19210"
	var resp *http.Response
	waitFor(t, "server up", func() bool {
		resp, err = http.Get(base + "/api/snapshot")
		return err == nil
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/snapshot status = %d", resp.StatusCode)
	}
	var snap struct {
		Settings struct {
			Endpoint string `json:"endpoint"`
		} `json:"settings"`
		Samples []Sample `json:"samples"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Settings.Endpoint != sensor.URL {
		t.Errorf("settings.endpoint = %q, want %q", snap.Settings.Endpoint, sensor.URL)
	}
	if len(snap.Samples) == 0 || snap.Samples[0].Value != 42 {
		t.Errorf("samples = %+v, want first value 42", snap.Samples)
	}

	page, err := http.Get(base + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	body, _ := io.ReadAll(page.Body)
	page.Body.Close()
	if !strings.Contains(string(body), "Greenhouse") {
		t.Error("dashboard does not contain configured title")
	}

	metrics, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ = io.ReadAll(metrics.Body)
	metrics.Body.Close()
	if !strings.Contains(string(body), `pulsemeter_polls_total{outcome="success"}`) {
		t.Error("/metrics missing pulsemeter_polls_total")
	}
}

func TestMonitor_Handler(t *testing.T) {
	m, err := New(
		WithEndpoint("http://localhost:3001/api/sensor"),
		WithAuthToken("secret"),
		WithLogger(testLogger()),
		WithoutServer(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/settings", strings.NewReader(`{"interval_ms": 1000}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := m.Settings().Interval; got != time.Second {
		t.Errorf("Interval = %v, want 1s", got)
	}

	var view map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view["auth_token"] == "secret" {
		t.Error("auth token leaked in API response")
	}
}

func TestMonitor_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":19211")
	if err != nil {
		t.Skipf("cannot reserve port: %v", err)
	}
	defer ln.Close()

	m, err := New(WithPort(19211), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Start(ctx); err == nil {
		t.Error("Start() error = nil, want bind error")
	}
}
