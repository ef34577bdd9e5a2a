package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apispark/apispark"
)

func main() {
	// start mock upstream and ingest server (see mock_server.go)
	go StartMockServer(":9999")
	time.Sleep(100 * time.Millisecond)

	var jobs []apispark.Job
	for _, city := range []string{"london", "oslo"} {
		job, err := apispark.NewJob("weather-"+city,
			"http://localhost:9999/weather?city="+city,
			"main", mockToken, 10*time.Second,
			apispark.WithHeaders("Accept", "application/json"),
		)
		if err != nil {
			slog.Error("failed to create job", "error", err)
			os.Exit(1)
		}
		jobs = append(jobs, job)
	}

	// a job pointing at a missing route shows failure isolation
	broken, _ := apispark.NewJob("broken", "http://localhost:9999/missing", "main", mockToken, 15*time.Second)
	jobs = append(jobs, broken)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	app, err := apispark.New(
		apispark.WithIngestURL("http://localhost:9999"),
		apispark.WithJobs(jobs...),
		apispark.WithStatusPort(8080),
		apispark.WithLogger(logger),
		apispark.WithRunCallback(func(r apispark.RunResult) {
			if r.OK() {
				fmt.Printf("  %s forwarded in %s\n", r.JobName, r.Duration.Round(time.Millisecond))
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create apispark", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  apispark demo")
	fmt.Println()
	fmt.Println("  Jobs:")
	fmt.Println("    weather-london, weather-oslo (every 10s)")
	fmt.Println("    broken (every 15s, always fails)")
	fmt.Println()
	fmt.Println("  Status: http://localhost:8080/api/jobs")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		slog.Error("apispark error", "error", err)
		os.Exit(1)
	}
}
