package apispark

import "time"

// RunResult holds the outcome of one job run.
type RunResult struct {
	// RunID identifies the run in logs.
	RunID string

	// JobIndex is the job's position in [Apispark.Jobs]. Unlike JobName it
	// is unique.
	JobIndex int

	JobName    string
	URL        string
	Repository string

	StartedAt time.Time
	Duration  time.Duration

	// StatusCode is the upstream HTTP status; zero if no response arrived.
	StatusCode int

	// NextRun is when the job is due again.
	NextRun time.Time

	// Err is nil when both the fetch and the forward succeeded.
	Err error
}

// OK reports whether the run fetched and forwarded successfully.
func (r RunResult) OK() bool {
	return r.Err == nil
}
