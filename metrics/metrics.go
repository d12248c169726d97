package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Jobs             *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	Transfers        *prometheus.CounterVec
	PurgedFiles      prometheus.Counter
	Deletions        *prometheus.CounterVec
	PendingDeletions prometheus.Gauge
	Requests         *prometheus.CounterVec
	RateLimitHits    prometheus.Counter
	registry         *prometheus.Registry
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_jobs_total",
				Help: "Conversion jobs by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediaforge_job_duration_seconds",
				Help:    "Wall time of conversion jobs",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"category"},
		),
		Transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_transfers_total",
				Help: "Object store transfers by direction and result",
			},
			[]string{"direction", "result"},
		),
		PurgedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_purged_files_total",
			Help: "Scratch files removed by retention",
		}),
		Deletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_remote_deletions_total",
				Help: "Delayed remote deletions by result",
			},
			[]string{"result"},
		),
		PendingDeletions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediaforge_pending_deletions",
			Help: "Remote deletions waiting for their delay to elapse",
		}),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaforge_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		RateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaforge_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.Jobs, m.JobDuration, m.Transfers, m.PurgedFiles,
		m.Deletions, m.PendingDeletions, m.Requests, m.RateLimitHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveJob(category, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(category, outcome).Inc()
	m.JobDuration.WithLabelValues(category).Observe(seconds)
}

func (m *Metrics) ObserveTransfer(direction string, err error) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(direction, result(err)).Inc()
}

func (m *Metrics) AddPurged(n int) {
	if m == nil {
		return
	}
	m.PurgedFiles.Add(float64(n))
}

func (m *Metrics) ObserveDeletion(result string) {
	if m == nil {
		return
	}
	m.Deletions.WithLabelValues(result).Inc()
}

func (m *Metrics) DeletionScheduled() {
	if m == nil {
		return
	}
	m.PendingDeletions.Inc()
}

func (m *Metrics) DeletionSettled() {
	if m == nil {
		return
	}
	m.PendingDeletions.Dec()
}

func (m *Metrics) IncrementRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncrementRateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimitHits.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
