// Package coordinator drives one inbound message through decoding, generation
// with a bounded retry budget, and either completion or dead-lettering.
//
// A message moves through RECEIVED, VALIDATING and GENERATING. A successful
// generation ends in COMPLETED and publishes a completion event. A failed one
// is RETRYING until the budget is spent, then EXHAUSTED: the request goes to
// the dead-letter publisher and the failure notifier and no completion event
// is sent. Messages that cannot be decoded or validated are dropped.
//
// Handle is safe for concurrent use; the only shared state is Counters.
package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/tracer"
)

// Outcome is the terminal state of a handled message.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeExhausted Outcome = "EXHAUSTED"
	OutcomeDropped   Outcome = "DROPPED"
)

const DefaultPublishTimeout = 10 * time.Second

// Generator produces a response for a request without returning an error.
type Generator interface {
	Generate(ctx context.Context, req model.EmbeddingRequest) model.EmbeddingResponse
}

// DeadLetterPublisher records exhausted requests. It must not fail.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, req model.EmbeddingRequest, lastErr error, attempts int) model.DeadLetterRecord
}

// FailureNotifier alerts on exhausted requests. It must not fail.
type FailureNotifier interface {
	Notify(ctx context.Context, req model.EmbeddingRequest, lastErr error, attempts int) model.FailureAlert
}

// Producer publishes completion events.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

type Config struct {
	CompletionTopic string
	Retry           RetryPolicy

	// PublishTimeout bounds the completion event publish.
	PublishTimeout time.Duration
}

type Coordinator struct {
	cfg       Config
	generator Generator
	dlq       DeadLetterPublisher
	notifier  FailureNotifier
	producer  Producer
	counters  *Counters

	logger  logger.Logger
	metrics *metrics.Metrics
	tracer  *tracer.Tracer
	sleep   func(ctx context.Context, d time.Duration)
	now     func() time.Time
}

type Option func(*Coordinator)

func WithLogger(l logger.Logger) Option { return func(c *Coordinator) { c.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Coordinator) { c.metrics = m } }

func WithTracer(t *tracer.Tracer) Option { return func(c *Coordinator) { c.tracer = t } }

// New wires a coordinator. counters may be shared with other coordinators.
func New(cfg Config, gen Generator, dlq DeadLetterPublisher, notifier FailureNotifier, producer Producer, counters *Counters, opts ...Option) *Coordinator {
	cfg.Retry = cfg.Retry.withDefaults()
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if counters == nil {
		counters = &Counters{}
	}
	c := &Coordinator{
		cfg:       cfg,
		generator: gen,
		dlq:       dlq,
		notifier:  notifier,
		producer:  producer,
		counters:  counters,
		logger:    logger.Nop{},
		sleep:     sleep,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewMetrics(metrics.Config{})
	}
	if c.tracer == nil {
		c.tracer = tracer.NewNoop()
	}
	return c
}

func (c *Coordinator) Counters() *Counters { return c.counters }

// Handle processes one raw inbound message. headers may carry trace context.
// Once a message is accepted its retry sequence runs to the end even if ctx
// is cancelled, so shutdown never leaves a request half retried.
func (c *Coordinator) Handle(ctx context.Context, body []byte, headers map[string]string) Outcome {
	number := c.counters.received.Add(1)
	c.metrics.IncMessagesReceived()

	ctx = c.tracer.SetCarrierOnContext(context.WithoutCancel(ctx), headers)
	ctx, span := c.tracer.StartSpan(ctx, "embedding.handle")
	defer span.End()

	fields := map[string]interface{}{"message_number": number}

	req, err := model.DecodeMessage(body)
	if err != nil {
		reason := "decode"
		if model.IsValidationError(err) {
			reason = "validation"
		}
		c.counters.dropped.Add(1)
		c.metrics.IncMessagesDropped(reason)
		c.tracer.RecordErrorOnSpan(span, err)
		fields["reason"] = reason
		c.logger.WarnWithContext(ctx, "dropping inbound message", err, fields)
		return OutcomeDropped
	}

	fields["tenant_id"] = req.TenantID()
	fields["document_id"] = req.DocumentID()
	fields["chunk_id"] = req.Key()
	c.tracer.SetAttributes(span, fields)
	c.logger.DebugWithContext(ctx, "embedding request received", nil, fields)

	resp := c.Process(ctx, req)
	if resp.Succeeded() {
		c.complete(ctx, req, resp, fields)
		c.counters.processed.Add(1)
		c.metrics.IncMessagesProcessed()
		return OutcomeCompleted
	}

	if resp.Err != nil {
		c.tracer.RecordErrorOnSpan(span, resp.Err)
	}
	c.dlq.Publish(ctx, req, resp.Err, resp.Attempts)
	c.notifier.Notify(ctx, req, resp.Err, resp.Attempts)
	c.counters.failed.Add(1)
	c.metrics.IncMessagesFailed(model.ErrorTypeName(resp.Err))
	return OutcomeExhausted
}

// Process runs the retry loop for an already validated request and returns
// the last response. Attempts is set on the returned response.
func (c *Coordinator) Process(ctx context.Context, req model.EmbeddingRequest) model.EmbeddingResponse {
	schedule := c.cfg.Retry.newBackOff()
	started := c.now()

	var resp model.EmbeddingResponse
	for attempt := 1; ; attempt++ {
		resp = c.attempt(ctx, req, attempt)
		resp.Attempts = attempt
		if resp.Succeeded() {
			c.metrics.ObserveAttempt(resp.ModelName, "success")
			break
		}
		c.metrics.ObserveAttempt(resp.ModelName, "failure")

		fields := map[string]interface{}{
			"tenant_id":    req.TenantID(),
			"document_id":  req.DocumentID(),
			"chunk_id":     req.Key(),
			"attempt":      attempt,
			"max_attempts": c.cfg.Retry.MaxAttempts,
			"error_type":   model.ErrorTypeName(resp.Err),
		}
		if attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.ErrorWithContext(ctx, "embedding retries exhausted", resp.Err, fields)
			break
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			c.logger.ErrorWithContext(ctx, "embedding backoff stopped early", resp.Err, fields)
			break
		}
		fields["backoff"] = wait.String()
		c.logger.WarnWithContext(ctx, "embedding attempt failed, retrying", resp.Err, fields)
		c.sleep(ctx, wait)
	}

	resp.ProcessingTime = c.now().Sub(started)
	return resp
}

func (c *Coordinator) attempt(ctx context.Context, req model.EmbeddingRequest, n int) model.EmbeddingResponse {
	ctx, span := c.tracer.StartSpan(ctx, "embedding.attempt")
	defer span.End()
	c.tracer.SetAttributes(span, map[string]interface{}{"attempt": n})

	resp := c.generator.Generate(ctx, req)
	if !resp.Succeeded() && resp.Err != nil {
		c.tracer.RecordErrorOnSpan(span, resp.Err)
	}
	return resp
}

// complete publishes the completion event keyed by the request key. A failed
// publish is logged; the vectors are already stored and cached.
func (c *Coordinator) complete(ctx context.Context, req model.EmbeddingRequest, resp model.EmbeddingResponse, fields map[string]interface{}) {
	payload, err := json.Marshal(model.NewCompletionEvent(resp, c.now()))
	if err != nil {
		c.logger.ErrorWithContext(ctx, "failed to encode completion event", err, fields)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
	defer cancel()
	if err := c.producer.Publish(pubCtx, c.cfg.CompletionTopic, req.Key(), payload, c.tracer.GetCarrier(ctx)); err != nil {
		c.metrics.IncSideChannelErrors("completion", "kafka")
		c.logger.ErrorWithContext(ctx, "failed to publish completion event", err, fields)
		return
	}

	fields["model"] = resp.ModelName
	fields["attempts"] = resp.Attempts
	fields["processing_ms"] = resp.ProcessingTime.Milliseconds()
	c.logger.InfoWithContext(ctx, "embedding request completed", nil, fields)
}
