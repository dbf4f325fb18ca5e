package pool

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/keyedpool/internal/backoff"
	"github.com/utkarsh5026/keyedpool/internal/metrics"
)

// BackoffType selects how the delay between retries grows.
type BackoffType = backoff.Kind

const (
	// BackoffExponential doubles the delay on every retry (default).
	BackoffExponential = backoff.Exponential
	// BackoffJittered adds random jitter to the exponential delay.
	BackoffJittered = backoff.Jittered
	// BackoffDecorrelated uses AWS-style decorrelated jitter.
	BackoffDecorrelated = backoff.Decorrelated
)

// Option configures a WorkPool. Options only record values; New validates them.
type Option func(*config)

type config struct {
	workerCount   int
	queueCapacity int

	maxAttempts    int
	initialDelay   time.Duration
	retryPolicySet bool

	backoffType         BackoffType
	backoffInitialDelay time.Duration
	backoffMaxDelay     time.Duration
	backoffJitterFactor float64

	rateSet        bool
	tasksPerSecond float64
	burst          int

	// Hooks are stored untyped so that Option stays non-generic; New checks
	// them against the pool's type parameters.
	beforeTaskStart any
	onTaskEnd       any
	onRetry         any

	keyGen      func() Key
	logger      *slog.Logger
	metricsSet  bool
	registerer  prometheus.Registerer
	cpuAffinity bool
}

// WithWorkerCount sets the number of worker goroutines.
// Defaults to runtime.GOMAXPROCS(0); values below 1 make New fail.
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		cfg.workerCount = count
	}
}

// WithQueueCapacity bounds the work queue. Put blocks while the queue is full.
// 0 (the default) means unbounded; negative values make New fail.
func WithQueueCapacity(capacity int) Option {
	return func(cfg *config) {
		cfg.queueCapacity = capacity
	}
}

// WithRetryPolicy retries a failing task up to maxAttempts times in total,
// waiting initialDelay before the first retry and backing off after that.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		cfg.maxAttempts = maxAttempts
		cfg.initialDelay = initialDelay
		cfg.retryPolicySet = true
	}
}

// WithBackoff chooses the retry delay algorithm. initialDelay is overridden
// by WithRetryPolicy when both are given.
//
// Example:
//
//	WithBackoff(BackoffJittered, 50*time.Millisecond, 2*time.Second, 0.2)
func WithBackoff(kind BackoffType, initialDelay, maxDelay time.Duration, jitterFactor float64) Option {
	return func(cfg *config) {
		cfg.backoffType = kind
		cfg.backoffInitialDelay = initialDelay
		cfg.backoffMaxDelay = maxDelay
		cfg.backoffJitterFactor = jitterFactor
	}
}

// WithRateLimit caps how fast workers start tasks, shared across all workers.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 tasks/sec with bursts of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		cfg.rateSet = true
		cfg.tasksPerSecond = tasksPerSecond
		cfg.burst = burst
	}
}

// WithBeforeTaskStart registers a hook run by the worker right before it
// applies the pool function. T must match the pool's task type.
func WithBeforeTaskStart[T any](hook func(task T)) Option {
	return func(cfg *config) {
		cfg.beforeTaskStart = hook
	}
}

// WithOnTaskEnd registers a hook run after each task, with its final result
// and error. T and R must match the pool's type parameters.
func WithOnTaskEnd[T any, R any](hook func(task T, result R, err error)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = hook
	}
}

// WithOnRetry registers a hook run after every failed attempt that will be
// retried. attempt is 1 for the first failure.
func WithOnRetry[T any](hook func(task T, attempt int, err error)) Option {
	return func(cfg *config) {
		cfg.onRetry = hook
	}
}

// WithKeyGenerator replaces the random UUID generator used by Put.
// The generator must not return keys that are already in use.
func WithKeyGenerator(gen func() Key) Option {
	return func(cfg *config) {
		cfg.keyGen = gen
	}
}

// WithLogger sets the structured logger for lifecycle and failure events.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithMetrics records pool activity in reg. Pools sharing a registry share series.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.metricsSet = true
		cfg.registerer = reg
	}
}

// WithCPUAffinity locks every worker to its own OS thread and, where the
// platform supports it, pins that thread to a CPU core.
func WithCPUAffinity() Option {
	return func(cfg *config) {
		cfg.cpuAffinity = true
	}
}

// settings is the validated, typed form of config.
type settings[T any, R any] struct {
	workerCount   int
	queueCapacity int
	maxAttempts   int
	backoff       backoff.Strategy
	limiter       *rate.Limiter

	beforeTaskStart func(T)
	onTaskEnd       func(T, R, error)
	onRetry         func(T, int, error)

	keyGen      func() Key
	logger      *slog.Logger
	recorder    metrics.Recorder
	cpuAffinity bool
}

func newUUIDKey() Key {
	return Key(uuid.NewString())
}

func newSettings[T any, R any](opts ...Option) (*settings[T, R], error) {
	cfg := &config{
		workerCount:         runtime.GOMAXPROCS(0),
		maxAttempts:         1,
		backoffType:         BackoffExponential,
		backoffInitialDelay: 100 * time.Millisecond,
		backoffMaxDelay:     5 * time.Second,
		backoffJitterFactor: 0.1,
		keyGen:              newUUIDKey,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.workerCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, cfg.workerCount)
	}
	if cfg.queueCapacity < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQueueCapacity, cfg.queueCapacity)
	}
	if cfg.retryPolicySet {
		if cfg.maxAttempts < 1 || cfg.initialDelay < 0 {
			return nil, fmt.Errorf("%w: %d attempts, initial delay %v", ErrInvalidRetryPolicy, cfg.maxAttempts, cfg.initialDelay)
		}
		cfg.backoffInitialDelay = cfg.initialDelay
	}
	if cfg.backoffInitialDelay < 0 || cfg.backoffMaxDelay < 0 {
		return nil, fmt.Errorf("%w: negative backoff delay", ErrInvalidRetryPolicy)
	}

	s := &settings[T, R]{
		workerCount:   cfg.workerCount,
		queueCapacity: cfg.queueCapacity,
		maxAttempts:   cfg.maxAttempts,
		backoff: backoff.New(
			cfg.backoffType,
			cfg.backoffInitialDelay,
			cfg.backoffMaxDelay,
			cfg.backoffJitterFactor,
		),
		keyGen:      cfg.keyGen,
		logger:      cfg.logger,
		recorder:    metrics.Nop{},
		cpuAffinity: cfg.cpuAffinity,
	}

	if cfg.rateSet {
		if cfg.tasksPerSecond <= 0 || cfg.burst <= 0 {
			return nil, fmt.Errorf("%w: %v tasks/sec, burst %d", ErrInvalidRateLimit, cfg.tasksPerSecond, cfg.burst)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.tasksPerSecond), cfg.burst)
	}

	if s.keyGen == nil {
		s.keyGen = newUUIDKey
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if cfg.metricsSet {
		rec, err := metrics.NewPrometheus(cfg.registerer)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMetrics, err)
		}
		s.recorder = rec
	}

	if err := s.bindHooks(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// bindHooks converts the untyped hooks in cfg to the pool's types.
func (s *settings[T, R]) bindHooks(cfg *config) error {
	var (
		zeroT T
		zeroR R
	)

	if cfg.beforeTaskStart != nil {
		hook, ok := cfg.beforeTaskStart.(func(T))
		if !ok {
			return fmt.Errorf("%w: WithBeforeTaskStart hook is %T, pool processes %T",
				ErrHookTypeMismatch, cfg.beforeTaskStart, zeroT)
		}
		s.beforeTaskStart = hook
	}

	if cfg.onTaskEnd != nil {
		hook, ok := cfg.onTaskEnd.(func(T, R, error))
		if !ok {
			return fmt.Errorf("%w: WithOnTaskEnd hook is %T, pool maps %T to %T",
				ErrHookTypeMismatch, cfg.onTaskEnd, zeroT, zeroR)
		}
		s.onTaskEnd = hook
	}

	if cfg.onRetry != nil {
		hook, ok := cfg.onRetry.(func(T, int, error))
		if !ok {
			return fmt.Errorf("%w: WithOnRetry hook is %T, pool processes %T",
				ErrHookTypeMismatch, cfg.onRetry, zeroT)
		}
		s.onRetry = hook
	}

	return nil
}
