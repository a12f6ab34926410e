package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockSensor simulates a temperature/humidity sensor.
// Temperature follows a bounded random walk; humidity is redrawn each tick.
type mockSensor struct {
	mu          sync.Mutex
	temperature float64
	humidity    int
	updatedAt   time.Time
}

// sensorReading is the payload shape served by the mock sensor.
type sensorReading struct {
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

func newMockSensor() *mockSensor {
	s := &mockSensor{temperature: 25.5}
	s.step()
	return s
}

// step moves the temperature by up to ±1.5 within 20-35 °C and draws a new
// humidity in 40-80 %.
func (s *mockSensor) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	change := (rand.Float64() - 0.5) * 3
	s.temperature = math.Max(20, math.Min(35, s.temperature+change))
	s.humidity = 40 + rand.Intn(40)
	s.updatedAt = time.Now().UTC()
}

func (s *mockSensor) reading() sensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sensorReading{
		Temperature: math.Round(s.temperature*10) / 10,
		Humidity:    s.humidity,
		Timestamp:   s.updatedAt,
	}
}

func (s *mockSensor) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step()
			r := s.reading()
			slog.Info("sensor updated", "temperature", r.Temperature, "humidity", r.Humidity)
		}
	}
}

// StartMockSensor runs a mock IoT sensor on addr until ctx is cancelled.
//
//	GET /api/sensor  {"sensor": {"temperature": 25.5, "humidity": 61, "timestamp": "..."}}
//	GET /api/flat    {"temperature": 25.5, "humidity": 61, "timestamp": "..."}
//
// Call this in a goroutine before creating the monitor.
func StartMockSensor(ctx context.Context, addr string) {
	sensor := newMockSensor()
	go sensor.run(ctx, 3*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sensor", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]sensorReading{"sensor": sensor.reading()})
	})
	mux.HandleFunc("GET /api/flat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sensor.reading())
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("mock sensor error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
