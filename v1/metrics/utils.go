package metrics

import (
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
)

func (m *Metrics) IncMessagesReceived() {
	m.messagesReceived.Inc()
}

func (m *Metrics) IncMessagesProcessed() {
	m.messagesProcessed.Inc()
}

// IncMessagesFailed counts a dead-lettered request under the type name of its last error.
func (m *Metrics) IncMessagesFailed(errorType string) {
	m.messagesFailed.WithLabelValues(errorType).Inc()
}

// IncMessagesDropped counts a message discarded before generation; reason is "decode" or "validation".
func (m *Metrics) IncMessagesDropped(reason string) {
	m.messagesDropped.WithLabelValues(reason).Inc()
}

// ObserveAttempt records one generation attempt; outcome is "success" or "failure".
func (m *Metrics) ObserveAttempt(model, outcome string) {
	m.attempts.WithLabelValues(model, outcome).Inc()
}

// ObserveCacheLookup records a lookup; result is "hit", "miss" or "error".
func (m *Metrics) ObserveCacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveProviderCall(model, outcome string, d time.Duration) {
	m.providerDuration.WithLabelValues(model, outcome).Observe(d.Seconds())
}

func (m *Metrics) IncStorageErrors(backend string) {
	m.storageErrors.WithLabelValues(backend).Inc()
}

// IncSideChannelErrors counts a failed dead-letter or alert delivery.
func (m *Metrics) IncSideChannelErrors(channel, sink string) {
	m.sideChannelErrors.WithLabelValues(channel, sink).Inc()
}

func (m *Metrics) SetBreakerState(model string, state float64) {
	m.breakerState.WithLabelValues(model).Set(state)
}

// ObserveOperation implements observability.Observer for the infrastructure clients.
func (m *Metrics) ObserveOperation(ctx observability.OperationContext) {
	status := "success"
	if ctx.Error != nil {
		status = "error"
	}
	m.clientOps.WithLabelValues(ctx.Component, ctx.Operation, status).Inc()
	m.clientOpDuration.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())
}

var _ observability.Observer = (*Metrics)(nil)
