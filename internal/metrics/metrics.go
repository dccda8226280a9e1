// Package metrics exposes job runner and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/huangsam/busfactor/core/jobs"
	"github.com/huangsam/busfactor/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "busfactor"

// Collector owns an independent registry so several servers can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	submitted    prometheus.Counter
	rejected     *prometheus.CounterVec
	finished     *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
	queueDepth   prometheus.Gauge
	requests     *prometheus.CounterVec
}

var _ jobs.Observer = &Collector{} // Compile-time check

// New creates and registers all collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Analysis jobs accepted into the queue.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Analysis submissions rejected, by reason.",
		}, []string{"reason"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Analysis jobs that reached a terminal state.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of each pipeline step.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"step"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}
	c.registry.MustRegister(
		c.submitted, c.rejected, c.finished, c.jobDuration, c.stepDuration, c.queueDepth, c.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the /metrics scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// JobSubmitted implements the jobs.Observer interface.
func (c *Collector) JobSubmitted() { c.submitted.Inc() }

// JobRejected implements the jobs.Observer interface.
func (c *Collector) JobRejected(reason string) { c.rejected.WithLabelValues(reason).Inc() }

// JobFinished implements the jobs.Observer interface.
func (c *Collector) JobFinished(status schema.JobStatus, elapsed time.Duration) {
	c.finished.WithLabelValues(string(status)).Inc()
	c.jobDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

// StepFinished implements the jobs.Observer interface.
func (c *Collector) StepFinished(step schema.Step, elapsed time.Duration) {
	c.stepDuration.WithLabelValues(string(step)).Observe(elapsed.Seconds())
}

// QueueDepth implements the jobs.Observer interface.
func (c *Collector) QueueDepth(n int) { c.queueDepth.Set(float64(n)) }

// RequestServed counts one HTTP request.
func (c *Collector) RequestServed(method, route string, code int) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
