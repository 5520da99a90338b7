// Package metrics defines the prometheus collectors of the worker and the
// gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "tfhe"

type WorkerMetrics struct {
	JobsProcessed     *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	BootstrapDuration prometheus.Histogram
	Bootstraps        prometheus.Counter
	ActiveWorkers     prometheus.Gauge
	ServerKeysLoaded  prometheus.Counter
}

func NewWorkerMetrics(registerer prometheus.Registerer) *WorkerMetrics {
	m := WorkerMetrics{
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "jobs_processed_total",
				Help:      "Number of jobs processed, by operation and final status",
			},
			[]string{"op", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a job from pop to result, by operation",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"op"},
		),
		BootstrapDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "bootstrap_duration_seconds",
				Help:      "Latency of a single programmable bootstrap",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		Bootstraps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "bootstraps_total",
				Help:      "Number of programmable bootstraps evaluated",
			},
		),
		ActiveWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_workers",
				Help:      "Number of workers currently processing a job",
			},
		),
		ServerKeysLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "server_keys_loaded_total",
				Help:      "Number of server keys decoded from storage",
			},
		),
	}

	registerer.MustRegister(m.JobsProcessed)
	registerer.MustRegister(m.JobDuration)
	registerer.MustRegister(m.BootstrapDuration)
	registerer.MustRegister(m.Bootstraps)
	registerer.MustRegister(m.ActiveWorkers)
	registerer.MustRegister(m.ServerKeysLoaded)

	return &m
}

type GatewayMetrics struct {
	Requests      *prometheus.CounterVec
	StoredBytes   prometheus.Counter
	JobsSubmitted *prometheus.CounterVec
}

func NewGatewayMetrics(registerer prometheus.Registerer) *GatewayMetrics {
	m := GatewayMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "gateway_requests_total",
				Help:      "Number of HTTP requests, by route and status code",
			},
			[]string{"route", "code"},
		),
		StoredBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "gateway_stored_bytes_total",
				Help:      "Bytes of ciphertexts and keys uploaded",
			},
		),
		JobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "gateway_jobs_submitted_total",
				Help:      "Number of jobs submitted, by operation",
			},
			[]string{"op"},
		),
	}

	registerer.MustRegister(m.Requests)
	registerer.MustRegister(m.StoredBytes)
	registerer.MustRegister(m.JobsSubmitted)

	return &m
}

// Handler serves the metrics of gatherer in the prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
