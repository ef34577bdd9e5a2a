package apispark

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

const testIngestURL = "https://ls.example.com"

func mustJob(t *testing.T, name string) Job {
	t.Helper()
	job, err := NewJob(name, "https://api.example.com/"+name, "main", "T", time.Minute)
	if err != nil {
		t.Fatalf("NewJob(%q) error = %v", name, err)
	}
	return job
}

func TestNew_Valid(t *testing.T) {
	app, err := New(WithIngestURL(testIngestURL), WithJob(mustJob(t, "ping")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if app.IngestURL() != testIngestURL {
		t.Errorf("IngestURL() = %q, want %q", app.IngestURL(), testIngestURL)
	}
	if len(app.Jobs()) != 1 {
		t.Errorf("len(Jobs()) = %d, want 1", len(app.Jobs()))
	}
}

func TestNew_NoJobsIsValid(t *testing.T) {
	if _, err := New(WithIngestURL(testIngestURL)); err != nil {
		t.Errorf("New() without jobs error = %v", err)
	}
}

func TestNew_MissingIngestURL(t *testing.T) {
	_, err := New(WithJob(mustJob(t, "ping")))
	if err == nil {
		t.Fatal("New() expected error without ingest URL")
	}
	if !strings.Contains(err.Error(), "ingest URL is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	app, err := New(WithIngestURL(testIngestURL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if app.tick != time.Second {
		t.Errorf("tick = %v, want 1s", app.tick)
	}
	if app.maxConcurrency != 1 {
		t.Errorf("maxConcurrency = %d, want 1", app.maxConcurrency)
	}
	if app.ingestTimeout != 30*time.Second {
		t.Errorf("ingestTimeout = %v, want 30s", app.ingestTimeout)
	}
	if app.StatusPort() != 0 {
		t.Errorf("StatusPort() = %d, want 0 (disabled)", app.StatusPort())
	}
	if app.StatusAddr() != nil {
		t.Errorf("StatusAddr() = %v, want nil", app.StatusAddr())
	}
}

func TestNew_SharedJobNames(t *testing.T) {
	app, err := New(
		WithIngestURL(testIngestURL),
		WithJob(mustJob(t, "ping")),
		WithJobs(mustJob(t, "a"), mustJob(t, "ping")),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tasks := app.toPollerTasks()
	if len(tasks) != 3 {
		t.Fatalf("toPollerTasks() = %d tasks, want 3", len(tasks))
	}
	if tasks[0].Name != "ping" || tasks[2].Name != "ping" {
		t.Errorf("task names = %q, %q, want both ping", tasks[0].Name, tasks[2].Name)
	}
}

func TestWithJobs_KeepsOrder(t *testing.T) {
	app, err := New(
		WithIngestURL(testIngestURL),
		WithJob(mustJob(t, "c")),
		WithJobs(mustJob(t, "a"), mustJob(t, "b")),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var names []string
	for _, j := range app.Jobs() {
		names = append(names, j.Name())
	}
	if strings.Join(names, ",") != "c,a,b" {
		t.Errorf("Jobs() order = %v, want [c a b]", names)
	}
}

func TestJobs_Immutability(t *testing.T) {
	app, err := New(WithIngestURL(testIngestURL), WithJob(mustJob(t, "ping")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	jobs := app.Jobs()
	jobs[0] = mustJob(t, "other")

	if app.Jobs()[0].Name() != "ping" {
		t.Error("Jobs() mutation affected the instance")
	}
}

func TestOptions_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr string
	}{
		{"empty ingest URL", WithIngestURL(""), "ingest URL cannot be empty"},
		{"ingest URL without scheme", WithIngestURL("ls.example.com"), "scheme"},
		{"zero ingest timeout", WithIngestTimeout(0), "ingest timeout must be positive"},
		{"zero tick", WithTick(0), "tick must be positive"},
		{"negative tick", WithTick(-time.Second), "tick must be positive"},
		{"zero concurrency", WithMaxConcurrency(0), "max concurrency must be positive"},
		{"negative port", WithStatusPort(-1), "status port"},
		{"port too large", WithStatusPort(65536), "status port"},
		{"nil logger", WithLogger(nil), "logger cannot be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithIngestURL(testIngestURL), tt.opt)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestOptions_Valid(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	app, err := New(
		WithIngestURL(testIngestURL),
		WithIngestTimeout(5*time.Second),
		WithTick(10*time.Millisecond),
		WithMaxConcurrency(4),
		WithStatusPort(9090),
		WithLogger(logger),
		WithRunCallback(nil),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if app.ingestTimeout != 5*time.Second || app.tick != 10*time.Millisecond || app.maxConcurrency != 4 {
		t.Errorf("options not applied: timeout=%v tick=%v concurrency=%d",
			app.ingestTimeout, app.tick, app.maxConcurrency)
	}
	if app.StatusPort() != 9090 {
		t.Errorf("StatusPort() = %d, want 9090", app.StatusPort())
	}
	if app.logger != logger {
		t.Error("WithLogger() not applied")
	}
	if len(app.runCallbacks) != 0 {
		t.Error("nil callback should be ignored")
	}
}

func TestToPollerTasks(t *testing.T) {
	job, err := NewJob("ping", "https://api.example.com/status", "main", "T", 5*time.Minute,
		WithHeaders("Accept", "application/json"),
		WithTimeout(3*time.Second),
	)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	app, err := New(WithIngestURL(testIngestURL), WithJob(job))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tasks := app.toPollerTasks()
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	task := tasks[0]
	if task.Name != "ping" || task.URL != "https://api.example.com/status" {
		t.Errorf("task = %+v", task)
	}
	if task.IngestURL != testIngestURL || task.Token != "T" || task.Repository != "main" {
		t.Errorf("task destination = %q %q %q", task.IngestURL, task.Repository, task.Token)
	}
	if task.Interval != 5*time.Minute || task.Timeout != 3*time.Second {
		t.Errorf("task timing = %v / %v", task.Interval, task.Timeout)
	}

	// headers must be a copy
	task.Headers["Accept"] = "mutated"
	if job.Headers()["Accept"] != "application/json" {
		t.Error("toPollerTasks() shared the header map with the job")
	}
}
