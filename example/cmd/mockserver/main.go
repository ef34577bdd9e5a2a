// Standalone mock server for trying the CLI locally.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/apispark run -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

func main() {
	fmt.Println("Mock server starting on :9999")
	fmt.Println("  GET  /status                          upstream API")
	fmt.Println("  POST /api/v1/ingest/humio-structured  fake LogScale (token: demo-token)")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var requests atomic.Int64
	started := time.Now()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"requests":   requests.Add(1),
			"uptime_sec": int(time.Since(started).Seconds()),
			"user_agent": r.UserAgent(),
		})
	})

	mux.HandleFunc("POST /api/v1/ingest/humio-structured", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer demo-token" {
			http.Error(w, "invalid ingest token", http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		slog.Info("ingested", "body", string(body))
	})

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
