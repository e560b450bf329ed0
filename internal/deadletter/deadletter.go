// Package deadletter records requests that exhausted their retry budget.
//
// Publish never fails: every sink gets the record independently and a sink
// error is logged and counted, not returned.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
)

// DefaultTimeout bounds each sink delivery.
const DefaultTimeout = 10 * time.Second

// Sink delivers one dead-letter record.
type Sink interface {
	Name() string
	Send(ctx context.Context, key string, record model.DeadLetterRecord, payload []byte) error
}

// Producer is the subset of the kafka client used by KafkaSink.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// ObjectWriter is the subset of the minio client used by ArchiveSink.
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
}

type Publisher struct {
	sinks   []Sink
	logger  logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(l logger.Logger) Option { return func(p *Publisher) { p.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Publisher) { p.metrics = m } }

func WithTimeout(d time.Duration) Option { return func(p *Publisher) { p.timeout = d } }

func NewPublisher(sinks []Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sinks:   sinks,
		logger:  logger.Nop{},
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewMetrics(metrics.Config{})
	}
	return p
}

// Publish builds a DeadLetterRecord with a fresh id and hands it to every
// sink. It returns the record for logging and tests.
func (p *Publisher) Publish(ctx context.Context, req model.EmbeddingRequest, lastErr error, attempts int) model.DeadLetterRecord {
	record := model.NewDeadLetterRecord(req, lastErr, attempts, p.now())
	fields := map[string]interface{}{
		"dlq_id":      record.DLQID,
		"tenant_id":   req.TenantID(),
		"document_id": req.DocumentID(),
		"chunk_id":    req.Key(),
		"error_type":  record.ErrorType,
		"attempts":    attempts,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		p.logger.ErrorWithContext(ctx, "failed to encode dead-letter record", err, fields)
		p.metrics.IncSideChannelErrors("deadletter", "encode")
		return record
	}

	for _, sink := range p.sinks {
		if err := p.send(ctx, sink, req.Key(), record, payload); err != nil {
			p.metrics.IncSideChannelErrors("deadletter", sink.Name())
			p.logger.ErrorWithContext(ctx, "failed to deliver dead-letter record", err, withSink(fields, sink.Name()))
			continue
		}
		p.logger.InfoWithContext(ctx, "request dead-lettered", nil, withSink(fields, sink.Name()))
	}
	return record
}

// send isolates one sink: a panicking sink is reported like a failing one.
func (p *Publisher) send(ctx context.Context, sink Sink, key string, record model.DeadLetterRecord, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", sink.Name(), r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return sink.Send(ctx, key, record, payload)
}

func withSink(fields map[string]interface{}, sink string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["sink"] = sink
	return out
}

// KafkaSink publishes records to the dead-letter topic, keyed by the request key.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, key string, record model.DeadLetterRecord, payload []byte) error {
	return s.producer.Publish(ctx, s.topic, key, payload, map[string]string{
		"dlq-id":         record.DLQID,
		"failure-reason": record.FailureReason,
		"error-type":     record.ErrorType,
		"attempt-count":  strconv.Itoa(record.AttemptCount),
	})
}

// ArchiveSink stores each record as a JSON object under
// <tenant>/<yyyy>/<mm>/<dd>/<dlq id>.json for later inspection and replay.
type ArchiveSink struct {
	objects ObjectWriter
}

func NewArchiveSink(objects ObjectWriter) *ArchiveSink {
	return &ArchiveSink{objects: objects}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Send(ctx context.Context, key string, record model.DeadLetterRecord, payload []byte) error {
	return s.objects.Put(ctx, ArchiveKey(record), payload, map[string]string{
		"chunk-id":   key,
		"tenant-id":  record.OriginalMessage.TenantID(),
		"error-type": record.ErrorType,
	})
}

// ArchiveKey returns the object key of record.
func ArchiveKey(record model.DeadLetterRecord) string {
	return path.Join(
		record.OriginalMessage.TenantID(),
		record.FailedAt.UTC().Format("2006/01/02"),
		record.DLQID+".json",
	)
}
