package apispark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/apispark/apispark/internal/ingest"
	"github.com/apispark/apispark/internal/poller"
	"github.com/apispark/apispark/internal/server"
	"github.com/apispark/apispark/internal/store"
)

const (
	defaultTick           = poller.DefaultTick
	defaultMaxConcurrency = 1
	defaultIngestTimeout  = 30 * time.Second
)

// Apispark polls the configured jobs and forwards their responses to LogScale.
//
// It is created using [New] with functional options and started with
// [Apispark.Start]. The typical lifecycle is:
//
//	app, err := apispark.New(
//	    apispark.WithIngestURL("https://cloud.community.humio.com"),
//	    apispark.WithJob(job),
//	)
//	if err != nil {
//	    slog.Error("failed to create apispark", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	app.Start(ctx) // blocks until context cancelled
type Apispark struct {
	jobs           []Job
	ingestURL      string
	ingestTimeout  time.Duration
	tick           time.Duration
	maxConcurrency int
	statusPort     int
	logger         *slog.Logger
	runCallbacks   []func(RunResult)

	mu         sync.Mutex
	statusAddr net.Addr
}

// New creates a new [Apispark] instance with the given options.
//
// [WithIngestURL] is required. Job names are tags and may repeat; every job
// is scheduled. An instance with no jobs is valid and simply idles until
// stopped.
func New(opts ...Option) (*Apispark, error) {
	cfg := &config{
		ingestTimeout:  defaultIngestTimeout,
		tick:           defaultTick,
		maxConcurrency: defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.ingestURL == "" {
		return nil, errors.New("ingest URL is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Apispark{
		jobs:           cfg.jobs,
		ingestURL:      cfg.ingestURL,
		ingestTimeout:  cfg.ingestTimeout,
		tick:           cfg.tick,
		maxConcurrency: cfg.maxConcurrency,
		statusPort:     cfg.statusPort,
		logger:         logger,
		runCallbacks:   cfg.runCallbacks,
	}, nil
}

// Start registers every job and runs them until ctx is cancelled.
//
// Each job's first run is due one interval after Start. Run failures are
// logged and reported to run callbacks; they never stop other jobs or the
// loop. When a status port is configured the status server runs alongside.
//
// Returns nil on graceful shutdown. Returns an error if a job cannot be
// registered or the status server fails to start.
func (a *Apispark) Start(ctx context.Context) error {
	a.logger.Info("apispark starting",
		"job_count", len(a.jobs),
		"ingest_url", a.ingestURL,
		"max_concurrency", a.maxConcurrency,
	)

	if ctx.Err() != nil {
		return nil
	}

	ingestClient := ingest.NewClient(a.ingestTimeout)
	defer ingestClient.Close()

	scheduler := poller.NewScheduler(ingestClient, a.tick, a.maxConcurrency, a.logger)
	statusStore := store.NewMemoryStore()

	for _, task := range a.toPollerTasks() {
		id, err := scheduler.Register(task)
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("failed to register job: %w", err)
		}
		next, _ := scheduler.NextRun(id)
		statusStore.Register(store.JobStatus{
			ID:         strconv.Itoa(id),
			Name:       task.Name,
			URL:        task.URL,
			Repository: task.Repository,
			Interval:   poller.DescribeInterval(task.Interval),
			NextRun:    next,
		})
	}

	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			a.handleResult(result, statusStore)
		}
	}()

	// stops the scheduler and drains the results consumer
	cleanup := func() {
		scheduler.Stop()
		wg.Wait()
	}

	if a.statusPort > 0 {
		srv := server.NewServer(statusStore, a.statusPort, a.logger)
		if err := srv.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start status server: %w", err)
		}
		a.mu.Lock()
		a.statusAddr = srv.Addr()
		a.mu.Unlock()
	}

	<-ctx.Done()
	cleanup()
	a.logger.Info("apispark stopped")
	return nil
}

// handleResult records a run, fires callbacks and logs the outcome.
func (a *Apispark) handleResult(result poller.RunResult, st store.Store) {
	run := store.Run{
		JobID:      strconv.Itoa(result.TaskID),
		JobName:    result.JobName,
		RunID:      result.RunID,
		StartedAt:  result.StartedAt,
		Duration:   result.Duration,
		StatusCode: result.StatusCode,
		NextRun:    result.NextRun,
	}
	if result.Error != nil {
		run.Err = result.Error.Error()
	}
	st.Record(run)

	if len(a.runCallbacks) > 0 {
		public := toPublicResult(result)
		for _, cb := range a.runCallbacks {
			invokeCallbackSafe(cb, public, a.logger)
		}
	}

	logAttrs := []any{
		"job", result.JobName,
		"job_index", result.TaskID,
		"run_id", result.RunID,
		"url", result.URL,
		"repository", result.Repository,
		"status_code", result.StatusCode,
		"duration_ms", result.Duration.Milliseconds(),
		"next_run", result.NextRun,
	}
	if result.Error != nil {
		a.logger.Warn("job run failed", append(logAttrs, "error", result.Error.Error())...)
		return
	}
	a.logger.Debug("job run completed", logAttrs...)
}

// toPollerTasks converts the jobs to the poller's task type.
func (a *Apispark) toPollerTasks() []poller.Task {
	tasks := make([]poller.Task, len(a.jobs))
	for i, j := range a.jobs {
		tasks[i] = poller.Task{
			Name:       j.name,
			URL:        j.url,
			Headers:    copyMap(j.headers),
			Timeout:    j.timeout,
			Interval:   j.interval,
			Repository: j.repository,
			IngestURL:  a.ingestURL,
			Token:      j.token,
		}
	}
	return tasks
}

// Jobs returns a copy of the configured jobs in registration order.
func (a *Apispark) Jobs() []Job {
	cp := make([]Job, len(a.jobs))
	copy(cp, a.jobs)
	return cp
}

// IngestURL returns the LogScale base URL.
func (a *Apispark) IngestURL() string {
	return a.ingestURL
}

// StatusPort returns the configured status server port; zero when disabled.
func (a *Apispark) StatusPort() int {
	return a.statusPort
}

// StatusAddr returns the address the status server listens on, or nil when
// the server is disabled or not yet started.
func (a *Apispark) StatusAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusAddr
}

func toPublicResult(r poller.RunResult) RunResult {
	return RunResult{
		JobIndex:   r.TaskID,
		RunID:      r.RunID,
		JobName:    r.JobName,
		URL:        r.URL,
		Repository: r.Repository,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		StatusCode: r.StatusCode,
		NextRun:    r.NextRun,
		Err:        r.Error,
	}
}

// invokeCallbackSafe calls a run callback with panic recovery.
func invokeCallbackSafe(cb func(RunResult), result RunResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("run callback panicked",
				"panic", r,
				"job", result.JobName,
			)
		}
	}()
	cb(result)
}
