package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

const mockToken = "demo-token"

// StartMockServer runs a fake upstream API and a fake LogScale ingest
// endpoint on the same address.
//
// GET /weather?city=X returns a JSON reading that drifts on every call.
// POST /api/v1/ingest/humio-structured accepts envelopes authenticated with
// mockToken and logs them.
// Call this in a goroutine before starting apispark.
func StartMockServer(addr string) {
	var (
		temps = make(map[string]float64)
		mu    sync.Mutex
	)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /weather", func(w http.ResponseWriter, r *http.Request) {
		city := r.URL.Query().Get("city")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		temp, ok := temps[city]
		if !ok {
			temp = 10 + rand.Float64()*15
		}
		temp += rand.Float64() - 0.5
		temps[city] = temp
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"city":        city,
			"temperature": temp,
			"unit":        "celsius",
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	mux.HandleFunc("POST /api/v1/ingest/humio-structured", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+mockToken {
			http.Error(w, "invalid ingest token", http.StatusUnauthorized)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("ingested", "events", strings.TrimSpace(string(body)))
		w.WriteHeader(http.StatusOK)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
