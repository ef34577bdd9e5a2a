package store

import "time"

// Job states reported in [JobStatus].State.
const (
	StatePending = "pending"
	StateOK      = "ok"
	StateFailed  = "failed"
)

// JobStatus represents a job and the outcome of its most recent run.
//
// JobStatus is optimized for JSON serialization (used by the REST API and
// SSE). It is decoupled from the poller's types so the two can evolve
// independently.
type JobStatus struct {
	// ID identifies the job in the store. Empty means Name is used.
	ID string `json:"id,omitempty"`

	// Name is the job's tag. Several jobs may share one.
	Name string `json:"name"`

	// URL is the upstream API the job polls.
	URL string `json:"url"`

	// Repository is the destination repository name.
	Repository string `json:"repository"`

	// Interval is the human readable schedule, e.g. "every 5 minutes".
	Interval string `json:"interval"`

	// State is one of StatePending, StateOK or StateFailed.
	State string `json:"state"`

	// LastRunID identifies the most recent run in logs.
	LastRunID string `json:"last_run_id,omitempty"`

	// LastRun is when the most recent run started; nil before the first run.
	LastRun *time.Time `json:"last_run"`

	// NextRun is when the job is due again.
	NextRun time.Time `json:"next_run"`

	// DurationMs is the duration of the most recent run in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// StatusCode is the upstream HTTP status of the most recent run.
	StatusCode int `json:"status_code"`

	// Runs and Failures count runs since startup.
	Runs     int64 `json:"runs"`
	Failures int64 `json:"failures"`

	// Error contains the error message of the most recent run, nil on success.
	Error *string `json:"error"`
}

// Run is the outcome of one job run as recorded by the store.
type Run struct {
	// JobID matches [JobStatus.ID]; empty means JobName is used.
	JobID      string
	JobName    string
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	StatusCode int
	NextRun    time.Time

	// Err is the failure message; empty on success.
	Err string
}

// Store defines the interface for storing and subscribing to job status updates.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Register adds a job in the pending state. Registering an existing
	// ID replaces its definition but keeps its position.
	Register(status JobStatus)

	// Record folds a run into the job's status, notifies all subscribers
	// and returns the updated status.
	Record(run Run) JobStatus

	// Get returns the status of a single job by ID.
	Get(id string) (JobStatus, bool)

	// GetAll returns all jobs in registration order.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []JobStatus

	// Subscribe returns a channel that receives status updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan JobStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan JobStatus)
}
