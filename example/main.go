package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pulsemeter"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start mock sensor (see mock_sensor.go)
	go StartMockSensor(ctx, ":3001")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	m, err := pulsemeter.New(
		pulsemeter.WithTitle("Greenhouse Sensor"),
		pulsemeter.WithEndpoint("http://localhost:3001/api/sensor"),
		pulsemeter.WithInterval(2*time.Second),
		pulsemeter.WithMonitoring(true),
		pulsemeter.WithPort(8080),
		pulsemeter.WithLogger(logger),
		pulsemeter.WithSampleCallback(func(s pulsemeter.Sample) {
			if s.Value > 33 {
				logger.Warn("temperature high", "value", s.Value)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   PulseMeter Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Sensor: http://localhost:3001/api/sensor (every 2s) ║")
	fmt.Println("  ║   Try /api/flat from the settings panel too           ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := m.Start(ctx); err != nil {
		slog.Error("pulsemeter error", "error", err)
		os.Exit(1)
	}
}
