// Package metrics exposes Prometheus collectors for the bot: request
// outcomes, stage latency, fetch attempts, lock activity and queue depth.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recipebot/internal/guard"
	"recipebot/internal/pipeline"
	"recipebot/internal/platform"
	"recipebot/internal/services"
)

const namespace = "recipebot"

// Metrics owns a private registry so tests and multiple daemons never
// collide on registration.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	fetchAttempts *prometheus.CounterVec
	lockEvents    *prometheus.CounterVec
	locksActive   prometheus.Gauge
	queueDepth    prometheus.Gauge
	queueRejected prometheus.Counter
}

// New builds and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processed requests by final outcome.",
		}, []string{"kind"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_stages_total",
			Help:      "Stages that failed without aborting the request.",
		}, []string{"kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "status"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquire",
			Name:      "attempts_total",
			Help:      "yt-dlp attempts per platform and result.",
		}, []string{"platform", "result"}),
		lockEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "events_total",
			Help:      "Requester lock transitions.",
		}, []string{"event"}),
		locksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "locks_active",
			Help:      "Requesters with a request in flight.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "queue_depth",
			Help:      "Requests waiting for a worker.",
		}),
		queueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "queue_rejected_total",
			Help:      "Requests turned away because the queue was full.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.warnings, m.stageDuration, m.fetchAttempts,
		m.lockEvents, m.locksActive, m.queueDepth, m.queueRejected,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage implements pipeline.Recorder.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = services.Reason(err)
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

// ObserveOutcome implements pipeline.Recorder.
func (m *Metrics) ObserveOutcome(kind pipeline.Kind, warnings []pipeline.Kind) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(kind)).Inc()
	for _, warning := range warnings {
		m.warnings.WithLabelValues(string(warning)).Inc()
	}
}

// ObserveFetchAttempt matches acquire.AttemptObserver.
func (m *Metrics) ObserveFetchAttempt(target platform.Target, _ string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchAttempts.WithLabelValues(target.String(), result).Inc()
}

// ObserveLock matches guard.Observer.
func (m *Metrics) ObserveLock(event guard.Event, _ int64) {
	if m == nil {
		return
	}
	m.lockEvents.WithLabelValues(string(event)).Inc()
	switch event {
	case guard.EventAcquired:
		m.locksActive.Inc()
	case guard.EventReleased, guard.EventReclaimed:
		m.locksActive.Dec()
	}
}

// SetQueueDepth records the number of waiting requests.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// IncQueueRejected counts a request refused by a full queue.
func (m *Metrics) IncQueueRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}
