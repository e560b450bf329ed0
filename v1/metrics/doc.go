// Package metrics exposes the pipeline's Prometheus metrics.
//
// Metrics uses its own registry rather than the global default, so tests can
// create as many instances as they like. Every series carries a constant
// "service" label. The HTTP server serves /metrics and any handler mounted
// with Handle, which the worker uses for /healthz and /models.
//
// *Metrics also implements observability.Observer, so the kafka and redis
// clients report their operations to it.
package metrics
