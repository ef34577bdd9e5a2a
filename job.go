package apispark

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const defaultJobTimeout = 30 * time.Second

// Job is a named periodic unit of work: fetch one URL and forward its JSON
// body to one log repository.
//
// Job is immutable after creation via [NewJob]. Getters return copies of
// mutable data.
type Job struct {
	name       string
	url        string
	repository string
	token      string
	interval   time.Duration
	headers    map[string]string
	timeout    time.Duration
}

// Name returns the job's tag, used in logs and results.
func (j Job) Name() string {
	return j.name
}

// URL returns the upstream API the job polls.
func (j Job) URL() string {
	return j.url
}

// Repository returns the name of the destination repository.
func (j Job) Repository() string {
	return j.repository
}

// Token returns the ingest token of the destination repository.
func (j Job) Token() string {
	return j.token
}

// Interval returns the fixed period between runs.
func (j Job) Interval() time.Duration {
	return j.interval
}

// Headers returns a copy of the extra request headers.
// Returns nil if none are set.
func (j Job) Headers() map[string]string {
	return copyMap(j.headers)
}

// Timeout returns the upstream request timeout. Defaults to 30 seconds.
func (j Job) Timeout() time.Duration {
	return j.timeout
}

// NewJob creates a [Job].
//
// The rawURL must be an absolute http or https URL. The token authenticates
// against repository on the ingest backend and must not be empty. The first
// run happens one interval after the job is started.
//
// Example:
//
//	job, err := apispark.NewJob("ping", "https://api.example.com/status", "main", token, time.Minute,
//	    apispark.WithHeaders("Accept", "application/json"),
//	)
func NewJob(name, rawURL, repository, token string, interval time.Duration, opts ...JobOption) (Job, error) {
	if name == "" {
		return Job{}, errors.New("job name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Job{}, fmt.Errorf("job [%s]: invalid URL: %w", name, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Job{}, fmt.Errorf("job [%s]: URL must have an http:// or https:// scheme", name)
	}

	if repository == "" {
		return Job{}, fmt.Errorf("job [%s]: repository cannot be empty", name)
	}
	if token == "" {
		return Job{}, fmt.Errorf("job [%s]: token for repository [%s] cannot be empty", name, repository)
	}
	if interval <= 0 {
		return Job{}, fmt.Errorf("job [%s]: interval must be positive, got %s", name, interval)
	}

	cfg := &jobConfig{
		timeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Job{}, fmt.Errorf("job [%s]: %w", name, err)
		}
	}

	return Job{
		name:       name,
		url:        rawURL,
		repository: repository,
		token:      token,
		interval:   interval,
		headers:    cfg.headers,
		timeout:    cfg.timeout,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
