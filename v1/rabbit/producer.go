package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publish sends body to the configured exchange and waits for the broker's
// confirm. An empty routingKey falls back to Exchange.RoutingKey. Headers
// are typically trace carriers from the tracer package.
func (rb *RabbitClient) Publish(ctx context.Context, routingKey string, body []byte, headers map[string]string) (err error) {
	start := time.Now()
	if routingKey == "" {
		routingKey = rb.cfg.Exchange.RoutingKey
	}
	defer func() {
		rb.observeOperation("produce", rb.cfg.Exchange.Name, routingKey, time.Since(start), err, int64(len(body)))
	}()

	if rb.closed() {
		return ErrClosed
	}

	msg := amqp.Publishing{
		ContentType:  rb.cfg.Exchange.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if len(headers) > 0 {
		msg.Headers = make(amqp.Table, len(headers))
		for k, v := range headers {
			msg.Headers[k] = v
		}
	}

	rb.mu.RLock()
	ch := rb.channel
	rb.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return ErrChannelClosed
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, rb.cfg.Exchange.Name, routingKey, false, false, msg)
	if err != nil {
		return TranslateError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, rb.cfg.ConfirmTimeout)
	defer cancel()

	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("rabbit: waiting for confirm: %w", err)
	}
	if !acked {
		return ErrNack
	}
	return nil
}
