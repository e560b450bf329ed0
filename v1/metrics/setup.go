package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns an isolated Prometheus registry, the pipeline collectors and
// the HTTP server exposing /metrics. Other handlers (health, model listing)
// are mounted on the same server through Handle.
type Metrics struct {
	Server *http.Server

	Registry *prometheus.Registry

	mux *http.ServeMux

	messagesReceived  prometheus.Counter
	messagesProcessed prometheus.Counter
	messagesFailed    *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	attempts          *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	storageErrors     *prometheus.CounterVec
	sideChannelErrors *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	clientOps         *prometheus.CounterVec
	clientOpDuration  *prometheus.HistogramVec
}

// NewMetrics creates the registry, registers every collector with a constant
// service label and prepares (but does not start) the HTTP server.
func NewMetrics(cfg Config) *Metrics {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)
	ns := cfg.Namespace

	m := &Metrics{
		Registry: registry,
		mux:      http.NewServeMux(),
	}

	m.messagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "messages_received_total", Help: "Inbound messages taken from the queue",
	})
	m.messagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Name: "messages_processed_total", Help: "Requests that completed successfully",
	})
	m.messagesFailed = createCounterVec(ns, "messages_failed_total", "Requests dead-lettered after exhausting retries", []string{"error_type"})
	m.messagesDropped = createCounterVec(ns, "messages_dropped_total", "Messages discarded before generation", []string{"reason"})
	m.attempts = createCounterVec(ns, "generation_attempts_total", "Generation attempts by outcome", []string{"model", "outcome"})
	m.cacheLookups = createCounterVec(ns, "cache_lookups_total", "Embedding cache lookups", []string{"result"})
	m.providerDuration = createHistogramVec(ns, "provider_request_duration_seconds", "Latency of batched provider calls", []string{"model", "outcome"}, prometheus.DefBuckets)
	m.storageErrors = createCounterVec(ns, "storage_errors_total", "Vector store writes that failed and were skipped", []string{"backend"})
	m.sideChannelErrors = createCounterVec(ns, "side_channel_errors_total", "Dead-letter and alert deliveries that failed", []string{"channel", "sink"})
	m.breakerState = createGaugeVec(ns, "circuit_breaker_state", "Provider circuit breaker state (0 closed, 1 half-open, 2 open)", []string{"model"})
	m.clientOps = createCounterVec(ns, "client_operations_total", "Infrastructure client operations", []string{"component", "operation", "status"})
	m.clientOpDuration = createHistogramVec(ns, "client_operation_duration_seconds", "Infrastructure client operation latency", []string{"component", "operation"}, prometheus.DefBuckets)

	wrapped.MustRegister(
		m.messagesReceived,
		m.messagesProcessed,
		m.messagesFailed,
		m.messagesDropped,
		m.attempts,
		m.cacheLookups,
		m.providerDuration,
		m.storageErrors,
		m.sideChannelErrors,
		m.breakerState,
		m.clientOps,
		m.clientOpDuration,
	)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: m.mux,
	}
	return m
}

// Handle mounts an additional handler on the metrics server.
func (m *Metrics) Handle(pattern string, handler http.Handler) {
	m.mux.Handle(pattern, handler)
}

func createCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func createHistogramVec(namespace, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

func createGaugeVec(namespace, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}
