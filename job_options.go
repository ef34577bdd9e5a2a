package apispark

import (
	"errors"
	"time"
)

// jobConfig holds mutable state during job construction.
type jobConfig struct {
	headers map[string]string
	timeout time.Duration
}

// JobOption configures a [Job] during construction. Options return an error
// if validation fails.
type JobOption func(*jobConfig) error

// WithHeaders adds request headers sent on every fetch of this job.
//
// Headers override the default User-Agent on collision. Accepts variadic
// key-value pairs; the number of arguments must be even.
//
// Example:
//
//	job, err := apispark.NewJob("quotes", url, "main", token, 5*time.Minute,
//	    apispark.WithHeaders("X-Api-Key", key),
//	)
func WithHeaders(keyValues ...string) JobOption {
	return func(cfg *jobConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout bounds each upstream request of this job.
// Defaults to 30 seconds. Returns an error if d is zero or negative.
func WithTimeout(d time.Duration) JobOption {
	return func(cfg *jobConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
