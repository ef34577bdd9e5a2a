package apispark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ingestRecorder is a fake LogScale ingest endpoint.
type ingestRecorder struct {
	mu       sync.Mutex
	auth     []string
	payloads [][]map[string]any
	status   int
}

func (rec *ingestRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload []map[string]any
	_ = json.Unmarshal(body, &payload)

	rec.mu.Lock()
	rec.auth = append(rec.auth, r.Header.Get("Authorization"))
	rec.payloads = append(rec.payloads, payload)
	status := rec.status
	rec.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
	}
}

func (rec *ingestRecorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.payloads)
}

func newUpstream(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// TestStart_ForwardsResponses runs the whole pipeline against local servers.
func TestStart_ForwardsResponses(t *testing.T) {
	upstream, _ := newUpstream(t, `{"status":"green"}`)
	rec := &ingestRecorder{}
	ingestSrv := httptest.NewServer(rec)
	defer ingestSrv.Close()

	job, err := NewJob("ping", upstream.URL, "main", "T", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	app, err := New(
		WithIngestURL(ingestSrv.URL),
		WithJob(job),
		WithTick(10*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for rec.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if len(rec.payloads) < 2 {
		t.Fatalf("ingest calls = %d, want at least 2", len(rec.payloads))
	}
	if rec.auth[0] != "Bearer T" {
		t.Errorf("Authorization = %q, want %q", rec.auth[0], "Bearer T")
	}

	envelope := rec.payloads[0][0]
	tags := envelope["tags"].(map[string]any)
	if tags["host"] != "Apispark.net/1.0" {
		t.Errorf("tags.host = %v", tags["host"])
	}
	events := envelope["events"].([]any)
	attrs := events[0].(map[string]any)["attributes"].(map[string]any)
	if attrs["status"] != "green" {
		t.Errorf("attributes = %v, want upstream body", attrs)
	}
}

// TestStart_FirstRunWaitsOneInterval verifies that nothing is fetched before
// the first interval elapses.
func TestStart_FirstRunWaitsOneInterval(t *testing.T) {
	upstream, hits := newUpstream(t, `{}`)
	ingestSrv := httptest.NewServer(&ingestRecorder{})
	defer ingestSrv.Close()

	job, _ := NewJob("slow", upstream.URL, "main", "T", time.Hour)
	app, err := New(
		WithIngestURL(ingestSrv.URL),
		WithJob(job),
		WithTick(10*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_ = app.Start(ctx)

	if hits.Load() != 0 {
		t.Errorf("upstream hit %d times before first interval", hits.Load())
	}
}

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	app, err := New(WithIngestURL(testIngestURL), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	app, err := New(WithIngestURL(testIngestURL), WithJob(mustJob(t, "ping")), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

// TestStart_MultipleSequentialRuns verifies an instance can be started again
// after a clean shutdown.
func TestStart_MultipleSequentialRuns(t *testing.T) {
	app, err := New(WithIngestURL(testIngestURL), WithJob(mustJob(t, "ping")), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		if err := app.Start(ctx); err != nil {
			t.Errorf("run %d: Start() error = %v", i, err)
		}
		cancel()
	}
}

func TestStart_StatusServer(t *testing.T) {
	upstream, _ := newUpstream(t, `{"n":1}`)
	ingestSrv := httptest.NewServer(&ingestRecorder{})
	defer ingestSrv.Close()

	// reserve a free port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	job, _ := NewJob("ping", upstream.URL, "main", "T", 30*time.Millisecond)
	app, err := New(
		WithIngestURL(ingestSrv.URL),
		WithJob(job),
		WithTick(10*time.Millisecond),
		WithStatusPort(port),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/jobs/0", port)
	var status struct {
		Name  string `json:"name"`
		State string `json:"state"`
		Runs  int    `json:"runs"`
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = json.NewDecoder(resp.Body).Decode(&status)
			_ = resp.Body.Close()
			if status.Runs > 0 {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	if status.Name != "ping" || status.State != "ok" || status.Runs == 0 {
		t.Errorf("status = %+v, want an ok run of ping", status)
	}
	if app.StatusAddr() == nil {
		t.Error("StatusAddr() = nil while server is running")
	}
}

func TestStart_StatusPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer func() { _ = ln.Close() }()

	app, err := New(
		WithIngestURL(testIngestURL),
		WithStatusPort(ln.Addr().(*net.TCPAddr).Port),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := app.Start(ctx); err == nil {
		t.Error("Start() expected bind error, got nil")
	}
}
