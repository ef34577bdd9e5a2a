package store

import (
	"sync"
)

const subscriberBufferSize = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Jobs are kept in registration order and keyed by ID, falling back to the
// name for jobs registered without one. Subscribers receive
// updates via buffered channels; if a subscriber's buffer is full the update
// is dropped for that subscriber so recording a run never blocks.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]*JobStatus
	order []string

	subMu       sync.RWMutex
	subscribers map[chan JobStatus]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]*JobStatus),
		subscribers: make(map[chan JobStatus]struct{}),
	}
}

// Register adds a job in the pending state.
func (m *MemoryStore) Register(status JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := statusKey(status.ID, status.Name)
	if _, ok := m.jobs[key]; !ok {
		m.order = append(m.order, key)
	}
	status.State = StatePending
	status.Error = nil
	m.jobs[key] = &status
}

// Record folds run into the job's status and notifies subscribers.
//
// A run for an unknown job creates an entry for it.
func (m *MemoryStore) Record(run Run) JobStatus {
	m.mu.Lock()
	key := statusKey(run.JobID, run.JobName)
	job, ok := m.jobs[key]
	if !ok {
		job = &JobStatus{ID: run.JobID, Name: run.JobName}
		m.jobs[key] = job
		m.order = append(m.order, key)
	}

	started := run.StartedAt
	job.LastRun = &started
	job.LastRunID = run.RunID
	job.NextRun = run.NextRun
	job.DurationMs = run.Duration.Milliseconds()
	job.StatusCode = run.StatusCode
	job.Runs++
	if run.Err != "" {
		msg := run.Err
		job.Error = &msg
		job.State = StateFailed
		job.Failures++
	} else {
		job.Error = nil
		job.State = StateOK
	}
	snapshot := *job
	m.mu.Unlock()

	m.notifySubscribers(snapshot)
	return snapshot
}

// Get returns the status of the job with the given ID.
func (m *MemoryStore) Get(id string) (JobStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return *job, true
}

// GetAll returns a snapshot of all jobs in registration order.
func (m *MemoryStore) GetAll() []JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]JobStatus, 0, len(m.order))
	for _, key := range m.order {
		jobs = append(jobs, *m.jobs[key])
	}
	return jobs
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan JobStatus {
	ch := make(chan JobStatus, subscriberBufferSize)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan JobStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(status JobStatus) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// slow subscriber, drop
		}
	}
}

func statusKey(id, name string) string {
	if id != "" {
		return id
	}
	return name
}
