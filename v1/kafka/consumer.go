package kafka

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is a consumed record. CommitMsg must be called once the record has
// been handled; until then it is redelivered after a rebalance or restart.
type Message interface {
	Body() []byte
	Key() string
	Header() map[string]string
	Topic() string
	Partition() int
	Offset() int64
	CommitMsg() error
}

type consumedMessage struct {
	raw    kafka.Message
	client *KafkaClient
}

func (m *consumedMessage) Body() []byte              { return m.raw.Value }
func (m *consumedMessage) Key() string               { return string(m.raw.Key) }
func (m *consumedMessage) Header() map[string]string { return fromKafkaHeaders(m.raw.Headers) }
func (m *consumedMessage) Topic() string             { return m.raw.Topic }
func (m *consumedMessage) Partition() int            { return m.raw.Partition }
func (m *consumedMessage) Offset() int64             { return m.raw.Offset }

// CommitMsg commits the offset on a background context so a cancelled consume
// loop does not lose the acknowledgement of an already handled message.
func (m *consumedMessage) CommitMsg() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.client.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := m.client.reader.CommitMessages(ctx, m.raw)
	m.client.observeOperation("commit", m.raw.Topic, strconv.Itoa(m.raw.Partition), time.Since(start), err, 0, map[string]interface{}{
		"offset": m.raw.Offset,
	})
	return err
}

// Consume starts a goroutine fetching messages until ctx is cancelled or the
// client is shut down. The returned channel is closed when the goroutine exits;
// wg tracks it so callers can wait for a clean stop.
func (k *KafkaClient) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan Message, error) {
	if k.reader == nil {
		return nil, ErrNoConsumer
	}

	out := make(chan Message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		for {
			start := time.Now()
			raw, err := k.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || k.isClosed() || errors.Is(err, io.EOF) {
					return
				}
				k.observeOperation("consume", k.cfg.ConsumerTopic, "", time.Since(start), err, 0, nil)
				log.Printf("WARN: Kafka fetch failed: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-k.shutdownSignal:
					return
				case <-time.After(time.Second):
				}
				continue
			}
			k.observeOperation("consume", raw.Topic, strconv.Itoa(raw.Partition), time.Since(start), nil, int64(len(raw.Value)), nil)

			select {
			case out <- &consumedMessage{raw: raw, client: k}:
			case <-ctx.Done():
				return
			case <-k.shutdownSignal:
				return
			}
		}
	}()

	return out, nil
}
