package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTick is how often the scheduler checks for due tasks.
	DefaultTick = time.Second

	resultBufferSize = 64
)

var (
	// ErrFetchFailed marks a run that failed while calling the upstream API.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrForwardFailed marks a run that failed while submitting to the ingest backend.
	ErrForwardFailed = errors.New("forward failed")

	// ErrAlreadyStarted is returned by [Scheduler.Register] once the loop is running.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Forwarder submits a JSON document to a log repository.
type Forwarder interface {
	Ingest(ctx context.Context, baseURL, token string, attributes json.RawMessage) error
}

// Task is the poller-internal description of one periodic job.
type Task struct {
	// Name tags the task in logs and results.
	Name string

	// URL is the upstream API to GET.
	URL string

	// Headers are extra request headers; they override the default User-Agent on collision.
	Headers map[string]string

	// Timeout bounds the upstream request. Zero means no per-request timeout.
	Timeout time.Duration

	// Interval is the fixed period between runs.
	Interval time.Duration

	// Repository is the destination repository name, used for logging only.
	Repository string

	// IngestURL is the ingest backend base URL.
	IngestURL string

	// Token authenticates against the destination repository.
	Token string
}

// RunResult is the outcome of a single task execution.
type RunResult struct {
	// TaskID is the registration index returned by [Scheduler.Register].
	TaskID int

	RunID      string
	JobName    string
	URL        string
	Repository string
	StartedAt  time.Time
	Duration   time.Duration

	// StatusCode is the upstream HTTP status, zero if no response was received.
	StatusCode int

	// NextRun is when the task is due again.
	NextRun time.Time

	// Error wraps [ErrFetchFailed] or [ErrForwardFailed]; nil on success.
	Error error
}

// scheduledTask is a registered Task with its scheduling state.
type scheduledTask struct {
	Task
	id      int
	nextRun time.Time
	running bool
}

// Scheduler runs registered tasks at fixed intervals.
//
// The scheduler owns its task registry; there is no package level state, so
// several schedulers can coexist (e.g. in tests). A background loop wakes up
// every tick, collects the tasks whose due time has elapsed and runs them in
// registration order. With a concurrency of one (the default) a run blocks
// every other task until it returns. With a higher concurrency the due tasks
// of one tick run in parallel, and the tick waits for all of them before the
// next check, so a task never overlaps with itself.
//
// Due times are computed from the schedule, not from completion: after a run
// the next due time advances by whole intervals past the tick that triggered
// it, so slow runs do not accumulate drift and missed slots are skipped.
type Scheduler struct {
	tasks          []*scheduledTask
	client         *Client
	forwarder      Forwarder
	tick           time.Duration
	maxConcurrency int
	results        chan RunResult
	logger         *slog.Logger
	now            func() time.Time
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates an empty [Scheduler].
//
// Parameters:
//   - forwarder: destination for fetched documents
//   - tick: how often due times are checked; zero or less uses [DefaultTick]
//   - maxConcurrency: how many due tasks may run at once; values below one mean one
//   - logger: logger for registration and panic recovery
//
// Tasks are added with [Scheduler.Register]; the loop is started with
// [Scheduler.Start] and stopped with [Scheduler.Stop].
func NewScheduler(forwarder Forwarder, tick time.Duration, maxConcurrency int, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		client:         NewClient(),
		forwarder:      forwarder,
		tick:           tick,
		maxConcurrency: maxConcurrency,
		results:        make(chan RunResult, resultBufferSize),
		logger:         logger,
		now:            time.Now,
	}
}

// Register adds a task whose first run is due one interval from now and
// returns its ID, the task's registration index.
//
// Names are tags, not keys: several tasks may share one.
func (s *Scheduler) Register(t Task) (int, error) {
	if t.Name == "" {
		return 0, errors.New("task name cannot be empty")
	}
	if t.Interval <= 0 {
		return 0, fmt.Errorf("task %q: interval must be positive, got %s", t.Name, t.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return 0, ErrAlreadyStarted
	}

	st := &scheduledTask{Task: t, id: len(s.tasks), nextRun: s.now().Add(t.Interval)}
	s.tasks = append(s.tasks, st)

	s.logger.Info("creating job",
		"job", t.Name,
		"interval", DescribeInterval(t.Interval),
		"url", t.URL,
		"repository", t.Repository,
	)
	return st.id, nil
}

// Tags returns the names of the registered tasks in registration order.
func (s *Scheduler) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		tags[i] = t.Name
	}
	return tags
}

// NextRun returns the next due time of the task with the given ID.
func (s *Scheduler) NextRun(id int) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= len(s.tasks) {
		return time.Time{}, false
	}
	return s.tasks[id].nextRun, true
}

// Results returns a receive-only channel that emits [RunResult] values.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed.
func (s *Scheduler) Results() <-chan RunResult {
	return s.results
}

// Start begins the polling loop in a background goroutine.
//
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, t := range s.tasks {
		s.logger.Debug("scheduled job", "job", t.Name, "next_run", t.nextRun)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				for _, result := range s.RunPending(loopCtx, s.now()) {
					select {
					case s.results <- result:
					case <-loopCtx.Done():
						return
					}
				}
			}
		}
	}()
}

// Stop halts the scheduler and waits for the loop to exit.
//
// In-flight runs are cancelled through their context. Stop is idempotent and
// safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.client.Close()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// RunPending executes every task due at now and returns their results in
// registration order. Tasks that are still running from an earlier call are
// skipped.
func (s *Scheduler) RunPending(ctx context.Context, now time.Time) []RunResult {
	s.mu.Lock()
	due := make([]*scheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.running || now.Before(t.nextRun) {
			continue
		}
		t.running = true
		due = append(due, t)
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return nil
	}

	results := make([]RunResult, len(due))
	if s.maxConcurrency == 1 {
		for i, t := range due {
			results[i] = s.runTask(ctx, t)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.maxConcurrency)
		for i, t := range due {
			g.Go(func() error {
				results[i] = s.runTask(ctx, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	s.mu.Lock()
	for i, t := range due {
		next := t.nextRun
		for !next.After(now) {
			next = next.Add(t.Interval)
		}
		t.nextRun = next
		t.running = false
		results[i].NextRun = next
	}
	s.mu.Unlock()

	return results
}

// runTask performs Fetch then Forward for one task. It never panics; a
// panic anywhere in the run is converted into an error carrying a
// correlation ID while the stack is logged.
func (s *Scheduler) runTask(ctx context.Context, t *scheduledTask) (result RunResult) {
	result = RunResult{
		TaskID:     t.id,
		RunID:      uuid.NewString(),
		JobName:    t.Name,
		URL:        t.URL,
		Repository: t.Repository,
		StartedAt:  s.now(),
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("job run panic",
				"correlation_id", correlationID,
				"job", t.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result.Error = fmt.Errorf("job run panic (correlation_id: %s)", correlationID)
		}
		result.Duration = time.Since(start)
	}()

	resp := s.client.Fetch(ctx, t.URL, t.Headers, t.Timeout)
	result.StatusCode = resp.StatusCode

	attributes, err := resp.JSON()
	if err != nil {
		result.Error = fmt.Errorf("%w: %s: %w", ErrFetchFailed, t.URL, err)
		return result
	}

	if err := s.forwarder.Ingest(ctx, t.IngestURL, t.Token, attributes); err != nil {
		result.Error = fmt.Errorf("%w: repository [%s]: %w", ErrForwardFailed, t.Repository, err)
		return result
	}

	return result
}

// DescribeInterval renders an interval for humans, using the singular
// "minute" for exactly one minute and the plural for other whole minutes.
func DescribeInterval(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "every minute"
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("every %d minutes", int64(d/time.Minute))
	default:
		return "every " + d.String()
	}
}
