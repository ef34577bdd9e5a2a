package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/apispark/apispark"
)

// BuildJobs resolves every job of cfg into an SDK [apispark.Job].
//
// logscale_url is checked first, before any job is looked at. Jobs are then
// resolved in document order; for each one the repository, its token and
// the interval are checked in that order and the first problem aborts the
// build. On error no jobs are returned.
func BuildJobs(cfg *Config) ([]apispark.Job, error) {
	if cfg.LogScaleURL == "" {
		return nil, ErrMissingLogScaleURL
	}

	jobs := make([]apispark.Job, 0, len(cfg.API))
	for _, jc := range cfg.API {
		job, err := buildJob(cfg, jc)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// buildJob converts a single JobConfig to an SDK Job.
func buildJob(cfg *Config, jc JobConfig) (apispark.Job, error) {
	if jc.ToRepository == "" {
		return apispark.Job{}, fmt.Errorf("api [%s]: %w", jc.Name, ErrMissingRepository)
	}

	repo, ok := cfg.Repository[jc.ToRepository]
	if !ok {
		return apispark.Job{}, fmt.Errorf("api [%s]: repository [%s]: %w", jc.Name, jc.ToRepository, ErrRepositoryNotFound)
	}
	if repo.Token == "" {
		return apispark.Job{}, fmt.Errorf("api [%s]: repository [%s]: %w", jc.Name, jc.ToRepository, ErrMissingToken)
	}

	if jc.Interval == nil {
		return apispark.Job{}, fmt.Errorf("api [%s]: %w", jc.Name, ErrMissingInterval)
	}
	if jc.Interval.Min == nil {
		return apispark.Job{}, fmt.Errorf("api [%s]: missing interval for min(utes): %w", jc.Name, ErrMissingInterval)
	}
	if *jc.Interval.Min <= 0 {
		return apispark.Job{}, fmt.Errorf("api [%s]: interval.min is %d: %w", jc.Name, *jc.Interval.Min, ErrInvalidInterval)
	}

	var opts []apispark.JobOption
	if jc.Timeout != 0 {
		opts = append(opts, apispark.WithTimeout(jc.Timeout.Duration()))
	}
	if len(jc.Headers) > 0 {
		opts = append(opts, apispark.WithHeaders(mapToKeyValuePairs(jc.Headers)...))
	}

	interval := time.Duration(*jc.Interval.Min) * time.Minute
	return apispark.NewJob(jc.Name, jc.URL, jc.ToRepository, repo.Token, interval, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
