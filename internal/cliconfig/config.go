// Package cliconfig loads the keyedpool command's YAML configuration and turns
// it into pool options.
package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/keyedpool/pool"
)

// Config mirrors the pool options that make sense to set from a file.
//
// Example:
//
//	workers: 8
//	queue_capacity: 256
//	retry:
//	  attempts: 3
//	  initial_delay: 50ms
//	  backoff: jittered
//	rate:
//	  per_second: 200
//	  burst: 20
type Config struct {
	Workers       int         `yaml:"workers"`
	QueueCapacity int         `yaml:"queue_capacity"`
	Retry         RetryConfig `yaml:"retry"`
	Rate          RateConfig  `yaml:"rate"`
	CPUAffinity   bool        `yaml:"cpu_affinity"`
}

type RetryConfig struct {
	Attempts     int           `yaml:"attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Backoff      string        `yaml:"backoff"`
	Jitter       float64       `yaml:"jitter"`
}

// RateConfig is disabled while PerSecond is zero.
type RateConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Workers: runtime.GOMAXPROCS(0),
		Retry: RetryConfig{
			Attempts:     1,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Backoff:      "exponential",
			Jitter:       0.1,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read decodes path over the defaults without validating, so that callers
// can overlay flags first. Fields missing from the file keep their defaults.
func Read(path string) (Config, error) {
	cfg := Default()

	// #nosec G304 -- the path comes from the --config flag
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("queue_capacity must not be negative, got %d", c.QueueCapacity))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}
	if _, err := ParseBackoff(c.Retry.Backoff); err != nil {
		errs = append(errs, err)
	}
	if c.Rate.PerSecond < 0 || (c.Rate.PerSecond > 0 && c.Rate.Burst < 1) {
		errs = append(errs, fmt.Errorf("rate needs a positive per_second and burst, got %v and %d", c.Rate.PerSecond, c.Rate.Burst))
	}
	return errors.Join(errs...)
}

// ParseBackoff maps a backoff name to its pool constant. The empty string is
// the default exponential backoff.
func ParseBackoff(name string) (pool.BackoffType, error) {
	switch strings.ToLower(name) {
	case "", "exponential":
		return pool.BackoffExponential, nil
	case "jittered":
		return pool.BackoffJittered, nil
	case "decorrelated":
		return pool.BackoffDecorrelated, nil
	default:
		return pool.BackoffExponential, fmt.Errorf("unknown backoff %q", name)
	}
}

// Options converts c into pool options. c must be valid.
func (c Config) Options() []pool.Option {
	kind, _ := ParseBackoff(c.Retry.Backoff)

	opts := []pool.Option{
		pool.WithWorkerCount(c.Workers),
		pool.WithQueueCapacity(c.QueueCapacity),
		pool.WithRetryPolicy(c.Retry.Attempts, c.Retry.InitialDelay),
		pool.WithBackoff(kind, c.Retry.InitialDelay, c.Retry.MaxDelay, c.Retry.Jitter),
	}
	if c.Rate.PerSecond > 0 {
		opts = append(opts, pool.WithRateLimit(c.Rate.PerSecond, c.Rate.Burst))
	}
	if c.CPUAffinity {
		opts = append(opts, pool.WithCPUAffinity())
	}
	return opts
}
