package apispark

import (
	"errors"
	"log/slog"
	"net/url"
	"time"
)

// config holds mutable state during Apispark construction.
type config struct {
	jobs           []Job
	ingestURL      string
	ingestTimeout  time.Duration
	tick           time.Duration
	maxConcurrency int
	statusPort     int
	logger         *slog.Logger
	runCallbacks   []func(RunResult)
}

// Option configures an [Apispark] instance during construction.
//
// Built-in options: [WithJob], [WithJobs], [WithIngestURL], [WithIngestTimeout],
// [WithTick], [WithMaxConcurrency], [WithStatusPort], [WithLogger],
// [WithRunCallback].
type Option func(*config) error

// WithJob adds a single [Job]. Jobs run in the order they are added.
func WithJob(j Job) Option {
	return func(cfg *config) error {
		cfg.jobs = append(cfg.jobs, j)
		return nil
	}
}

// WithJobs adds several jobs at once. Equivalent to calling [WithJob] for each.
func WithJobs(jobs ...Job) Option {
	return func(cfg *config) error {
		cfg.jobs = append(cfg.jobs, jobs...)
		return nil
	}
}

// WithIngestURL sets the base URL of the LogScale instance every job forwards to.
// It is required.
//
// Returns an error if the URL is empty or has no http(s) scheme.
func WithIngestURL(rawURL string) Option {
	return func(cfg *config) error {
		if rawURL == "" {
			return errors.New("ingest URL cannot be empty")
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid ingest URL: " + err.Error())
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("ingest URL must have an http:// or https:// scheme")
		}
		cfg.ingestURL = rawURL
		return nil
	}
}

// WithIngestTimeout bounds each ingest call. Defaults to 30 seconds.
func WithIngestTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return errors.New("ingest timeout must be positive")
		}
		cfg.ingestTimeout = d
		return nil
	}
}

// WithTick sets how often the scheduler checks for due jobs. Defaults to one
// second; shorter ticks are mostly useful in tests.
func WithTick(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return errors.New("tick must be positive")
		}
		cfg.tick = d
		return nil
	}
}

// WithMaxConcurrency sets how many due jobs may run at the same time.
//
// The default of 1 runs due jobs strictly one after another in registration
// order. Higher values let a slow job run alongside others; a job never
// overlaps with itself either way.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithStatusPort enables the status server on the given port.
// Zero disables it, which is the default.
//
// Returns an error if the port is outside 0-65535.
func WithStatusPort(port int) Option {
	return func(cfg *config) error {
		if port < 0 || port > 65535 {
			return errors.New("status port must be between 0 and 65535")
		}
		cfg.statusPort = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithRunCallback registers a function called after every job run.
//
// Callbacks execute in registration order from a single goroutine and must
// not block. Panics are recovered and logged. Nil callbacks are ignored.
//
// Example:
//
//	app, err := apispark.New(
//	    apispark.WithIngestURL(url),
//	    apispark.WithJob(job),
//	    apispark.WithRunCallback(func(r apispark.RunResult) {
//	        if r.Err != nil {
//	            alerts.Notify(r.JobName, r.Err)
//	        }
//	    }),
//	)
func WithRunCallback(cb func(RunResult)) Option {
	return func(cfg *config) error {
		if cb == nil {
			return nil
		}
		cfg.runCallbacks = append(cfg.runCallbacks, cb)
		return nil
	}
}
