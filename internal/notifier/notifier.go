// Package notifier raises an operational alert for every request that
// exhausted its retry budget. Like the dead-letter publisher it never fails.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
)

const DefaultTimeout = 5 * time.Second

// Sink delivers one encoded alert.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert model.FailureAlert, payload []byte) error
}

// Producer is the subset of the kafka client used by KafkaSink.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// AMQPPublisher is the subset of the rabbit client used by RabbitSink.
type AMQPPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, headers map[string]string) error
}

type Notifier struct {
	sinks   []Sink
	logger  logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Notifier)

func WithLogger(l logger.Logger) Option { return func(n *Notifier) { n.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(n *Notifier) { n.metrics = m } }

func WithTimeout(d time.Duration) Option { return func(n *Notifier) { n.timeout = d } }

func New(sinks []Sink, opts ...Option) *Notifier {
	n := &Notifier{
		sinks:   sinks,
		logger:  logger.Nop{},
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.metrics == nil {
		n.metrics = metrics.NewMetrics(metrics.Config{})
	}
	return n
}

// Notify builds a HIGH severity alert for req and sends it to every sink.
func (n *Notifier) Notify(ctx context.Context, req model.EmbeddingRequest, lastErr error, attempts int) model.FailureAlert {
	alert := model.NewFailureAlert(req, lastErr, attempts, n.now())
	fields := map[string]interface{}{
		"alert_id":    alert.AlertID,
		"tenant_id":   alert.TenantID,
		"document_id": alert.DocumentID,
		"chunk_id":    alert.ChunkID,
		"error_type":  alert.ErrorType,
		"severity":    alert.Severity,
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		n.logger.ErrorWithContext(ctx, "failed to encode failure alert", err, fields)
		n.metrics.IncSideChannelErrors("alert", "encode")
		return alert
	}

	delivered := 0
	for _, sink := range n.sinks {
		if err := n.send(ctx, sink, alert, payload); err != nil {
			n.metrics.IncSideChannelErrors("alert", sink.Name())
			n.logger.ErrorWithContext(ctx, "failed to send failure alert", err, withSink(fields, sink.Name()))
			continue
		}
		delivered++
	}

	// The log line is the alert of last resort when no sink accepted it.
	if delivered == 0 {
		n.logger.ErrorWithContext(ctx, alert.Message, lastErr, fields)
	} else {
		n.logger.WarnWithContext(ctx, alert.Message, lastErr, fields)
	}
	return alert
}

func (n *Notifier) send(ctx context.Context, sink Sink, alert model.FailureAlert, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", sink.Name(), r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return sink.Send(ctx, alert, payload)
}

func withSink(fields map[string]interface{}, sink string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["sink"] = sink
	return out
}

func headers(alert model.FailureAlert) map[string]string {
	return map[string]string{
		"alert-type": alert.AlertType,
		"severity":   alert.Severity,
		"tenant-id":  alert.TenantID,
	}
}

// KafkaSink publishes alerts to the alert topic keyed by alert id.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, alert model.FailureAlert, payload []byte) error {
	return s.producer.Publish(ctx, s.topic, alert.AlertID, payload, headers(alert))
}

// RabbitSink publishes alerts to an AMQP exchange with the routing key
// "<prefix>.<severity>", e.g. "alerts.high", so on-call tooling can bind by severity.
type RabbitSink struct {
	publisher AMQPPublisher
	prefix    string
}

func NewRabbitSink(publisher AMQPPublisher, prefix string) *RabbitSink {
	return &RabbitSink{publisher: publisher, prefix: prefix}
}

func (s *RabbitSink) Name() string { return "rabbitmq" }

func (s *RabbitSink) Send(ctx context.Context, alert model.FailureAlert, payload []byte) error {
	return s.publisher.Publish(ctx, RoutingKey(s.prefix, alert), payload, headers(alert))
}

// RoutingKey returns the AMQP routing key for alert.
func RoutingKey(prefix string, alert model.FailureAlert) string {
	severity := strings.ToLower(alert.Severity)
	if prefix == "" {
		return severity
	}
	return prefix + "." + severity
}
