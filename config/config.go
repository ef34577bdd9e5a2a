// Package config provides YAML configuration parsing for apispark.
//
// The configuration names one LogScale instance, the repositories jobs may
// write to with their ingest tokens, and the API jobs themselves.
//
// Example configuration:
//
//	logscale_url: https://cloud.community.humio.com
//
//	repository:
//	  main:
//	    token: ${MAIN_INGEST_TOKEN}
//
//	api:
//	  ping:
//	    name: ping
//	    url: https://api.example.com/status
//	    to_repository: main
//	    interval:
//	      min: 1
//
// [Parse] only decodes the document and expands environment variables.
// Resolution of repositories, tokens and intervals happens in [BuildJobs].
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is read when no config file is given.
	DefaultPath = "config.yaml"

	// DefaultTimeout bounds each upstream request when a job sets none.
	DefaultTimeout = 30 * time.Second

	defaultLogFile       = "/logs/apispark.log"
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 5
	defaultLogLevel      = "debug"
)

// Configuration errors. Job level errors are wrapped with the job name, so
// callers should match them with errors.Is.
var (
	ErrConfigNotFound     = errors.New("config file not found")
	ErrMissingLogScaleURL = errors.New("logscale url not entered")
	ErrMissingRepository  = errors.New("the field [to_repository] is not set or empty")
	ErrRepositoryNotFound = errors.New("not defined in the repository section")
	ErrMissingToken       = errors.New("token not found, please check your config file")
	ErrMissingInterval    = errors.New("interval is not set or empty, please add min")
	ErrInvalidInterval    = errors.New("interval must be a positive number of minutes")
)

// Config is the root configuration structure for apispark.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// LogScaleURL is the base URL of the ingest backend.
	LogScaleURL string `yaml:"logscale_url"`

	// Repository maps repository names to their ingest credentials.
	Repository map[string]RepositoryConfig `yaml:"repository"`

	// API lists the jobs in document order.
	API Jobs `yaml:"api"`

	Log       LogConfig       `yaml:"log"`
	Status    StatusConfig    `yaml:"status"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// RepositoryConfig holds the credentials of one ingest repository.
type RepositoryConfig struct {
	Token string `yaml:"token"`
}

// JobConfig defines one API job.
type JobConfig struct {
	// Key is the job's key in the api mapping.
	Key string `yaml:"-"`

	// Name tags the job in logs. Defaults to Key.
	Name string `yaml:"name"`

	// URL is the upstream API. Supports ${VAR} and ${VAR:-default}.
	URL string `yaml:"url"`

	// ToRepository names an entry of the repository mapping.
	ToRepository string `yaml:"to_repository"`

	// Interval is required; nil means the block is missing.
	Interval *IntervalConfig `yaml:"interval"`

	// Headers are extra request headers. Values support env substitution.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each request. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`
}

// IntervalConfig holds the polling period of a job.
type IntervalConfig struct {
	// Min is the period in minutes; nil means the field is missing.
	Min *int `yaml:"min"`
}

// Jobs is the api mapping decoded in document order.
type Jobs []JobConfig

// UnmarshalYAML implements yaml.Unmarshaler for Jobs.
//
// A plain Go map would lose the order jobs are written in, which is also the
// order they are registered and run in.
func (j *Jobs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("api must be a mapping of job name to job, got %s", kindName(node.Kind))
	}

	jobs := make(Jobs, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return fmt.Errorf("api: invalid job key at line %d: %w", keyNode.Line, err)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("api: duplicate job [%s] at line %d", key, keyNode.Line)
		}
		seen[key] = struct{}{}

		var job JobConfig
		if err := valueNode.Decode(&job); err != nil {
			return fmt.Errorf("api [%s]: %w", key, err)
		}
		job.Key = key
		if job.Name == "" {
			job.Name = key
		}
		jobs = append(jobs, job)
	}

	*j = jobs
	return nil
}

// LogConfig configures the operational log.
type LogConfig struct {
	// File is the rotating log file. An explicit empty string disables it.
	File *string `yaml:"file"`

	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
}

// FilePath returns the configured log file, or the default when unset.
func (l LogConfig) FilePath() string {
	if l.File == nil {
		return defaultLogFile
	}
	return *l.File
}

// StatusConfig configures the optional status server.
type StatusConfig struct {
	// Port of the status server. Zero disables it.
	Port int `yaml:"port"`
}

// SchedulerConfig tunes job dispatch.
type SchedulerConfig struct {
	// MaxConcurrency is how many due jobs may run at once. Defaults to 1.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1 is the name, group 2 the ":-default" part, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// A missing file yields an error matching [ErrConfigNotFound].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in logscale_url, repository tokens, job
// URLs and header values. When logscale_url is empty only logscale_url is
// expanded. Defaults are applied to the log and scheduler
// sections and to job timeouts. No cross-reference checks happen here.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = defaultLogMaxBackups
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Scheduler.MaxConcurrency == 0 {
		c.Scheduler.MaxConcurrency = 1
	}
	for i := range c.API {
		if c.API[i].Timeout == 0 {
			c.API[i].Timeout = Duration(DefaultTimeout)
		}
	}
}

func (c *Config) expand() error {
	expanded, err := expandEnvVars(c.LogScaleURL)
	if err != nil {
		return fmt.Errorf("logscale_url: %w", err)
	}
	c.LogScaleURL = expanded

	// BuildJobs rejects the config on the missing url before looking at any
	// repository or job, so their variables must not fail first.
	if c.LogScaleURL == "" {
		return nil
	}

	for name, repo := range c.Repository {
		token, err := expandEnvVars(repo.Token)
		if err != nil {
			return fmt.Errorf("repository [%s]: token: %w", name, err)
		}
		c.Repository[name] = RepositoryConfig{Token: token}
	}

	for i := range c.API {
		job := &c.API[i]

		expanded, err := expandEnvVars(job.URL)
		if err != nil {
			return fmt.Errorf("api [%s]: url: %w", job.Name, err)
		}
		job.URL = expanded

		for k, v := range job.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("api [%s]: headers[%s]: %w", job.Name, k, err)
			}
			job.Headers[k] = expanded
		}
	}
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "mapping"
	}
}
