// Standalone mock IoT sensor for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mocksensor
//
// Then in another terminal:
//
//	go run ./cmd/pulsemeter serve -c example/pulsemeter.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	addr := flag.String("addr", ":3001", "listen address")
	flag.Parse()

	fmt.Printf("Mock IoT sensor starting on %s\n", *addr)
	fmt.Println("Temperature will fluctuate between 20-35°C")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu          sync.Mutex
		temperature = 25.5
		humidity    = 60
		updatedAt   = time.Now().UTC()
	)

	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			temperature = math.Max(20, math.Min(35, temperature+(rand.Float64()-0.5)*3))
			humidity = 40 + rand.Intn(40)
			updatedAt = time.Now().UTC()
			slog.Info("sensor updated", "temperature", math.Round(temperature*10)/10, "humidity", humidity)
			mu.Unlock()
		}
	}()

	reading := func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return map[string]any{
			"temperature": math.Round(temperature*10) / 10,
			"humidity":    humidity,
			"timestamp":   updatedAt.Format(time.RFC3339Nano),
		}
	}

	http.HandleFunc("GET /api/sensor", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"sensor": reading()}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})
	http.HandleFunc("GET /api/flat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reading()); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("mock sensor error", "error", err)
		os.Exit(1)
	}
}
