package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publish writes one message to topic. Messages with the same key land on the
// same partition. Headers typically carry the trace carrier from the tracer package.
func (k *KafkaClient) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if k.isClosed() {
		return ErrClosed
	}

	k.mu.RLock()
	writer := k.writer
	k.mu.RUnlock()

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: toKafkaHeaders(headers),
		Time:    time.Now(),
	}

	start := time.Now()
	err := writer.WriteMessages(ctx, msg)
	k.observeOperation("produce", topic, key, time.Since(start), err, int64(len(value)), nil)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromKafkaHeaders(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
