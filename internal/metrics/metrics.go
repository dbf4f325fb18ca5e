// Package metrics exposes pool activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keyedpool"

// Recorder receives pool events. Implementations must be safe for
// concurrent use by every worker.
type Recorder interface {
	Submitted()
	Started(queued time.Duration)
	Finished(elapsed time.Duration, err error)
	Retried()
	WorkersRunning(delta int)
	QueueDepth(n int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Submitted()                    {}
func (Nop) Started(time.Duration)         {}
func (Nop) Finished(time.Duration, error) {}
func (Nop) Retried()                      {}
func (Nop) WorkersRunning(int)            {}
func (Nop) QueueDepth(int)                {}

// Prometheus records pool events as Prometheus metrics.
//
// Pools are single use, so a long-running program creates many of them
// against the same registry. Registration therefore reuses collectors that
// are already registered instead of failing, and every pool sharing a
// registry feeds the same series.
type Prometheus struct {
	TasksSubmitted prometheus.Counter
	TasksCompleted *prometheus.CounterVec
	TaskRetries    prometheus.Counter
	TaskDuration   *prometheus.HistogramVec
	QueueWait      prometheus.Histogram
	Workers        prometheus.Gauge
	Queued         prometheus.Gauge
}

// NewPrometheus creates the pool collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		return nil, errors.New("metrics: nil registerer")
	}

	m := &Prometheus{
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks put on a pool queue",
		}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks whose result was stored",
		}, []string{"outcome"}),
		TaskRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_retries_total",
			Help:      "Total number of retried task attempts",
		}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent applying the pool function, retries included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_queue_wait_seconds",
			Help:      "Time a task spent queued before a worker claimed it",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "Number of worker goroutines currently running",
		}),
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of messages waiting in the most recently sampled queue",
		}),
	}

	var err error
	if m.TasksSubmitted, err = register(reg, m.TasksSubmitted); err != nil {
		return nil, err
	}
	if m.TasksCompleted, err = register(reg, m.TasksCompleted); err != nil {
		return nil, err
	}
	if m.TaskRetries, err = register(reg, m.TaskRetries); err != nil {
		return nil, err
	}
	if m.TaskDuration, err = register(reg, m.TaskDuration); err != nil {
		return nil, err
	}
	if m.QueueWait, err = register(reg, m.QueueWait); err != nil {
		return nil, err
	}
	if m.Workers, err = register(reg, m.Workers); err != nil {
		return nil, err
	}
	if m.Queued, err = register(reg, m.Queued); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) Submitted() {
	m.TasksSubmitted.Inc()
}

func (m *Prometheus) Started(queued time.Duration) {
	m.QueueWait.Observe(queued.Seconds())
}

func (m *Prometheus) Finished(elapsed time.Duration, err error) {
	o := outcome(err)
	m.TasksCompleted.WithLabelValues(o).Inc()
	m.TaskDuration.WithLabelValues(o).Observe(elapsed.Seconds())
}

func (m *Prometheus) Retried() {
	m.TaskRetries.Inc()
}

func (m *Prometheus) WorkersRunning(delta int) {
	m.Workers.Add(float64(delta))
}

func (m *Prometheus) QueueDepth(n int) {
	m.Queued.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}
