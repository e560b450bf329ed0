package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
)

type kafkaMsg struct {
	topic, key string
	value      []byte
}

type fakeProducer struct {
	sent []kafkaMsg
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, value []byte, _ map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, kafkaMsg{topic: topic, key: key, value: value})
	return nil
}

type amqpMsg struct {
	routingKey string
	body       []byte
	headers    map[string]string
}

type fakeAMQP struct {
	sent []amqpMsg
	err  error
}

func (p *fakeAMQP) Publish(_ context.Context, routingKey string, body []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, amqpMsg{routingKey: routingKey, body: body, headers: headers})
	return nil
}

func testRequest(t *testing.T, chunks ...string) model.EmbeddingRequest {
	t.Helper()
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	req, err := model.NewEmbeddingRequest("tenant-1", "doc-1", "", texts, chunks)
	require.NoError(t, err)
	return req
}

func TestNotify_KafkaAlert(t *testing.T) {
	producer := &fakeProducer{}
	n := New([]Sink{NewKafkaSink(producer, "failure-alerts")})
	n.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }

	lastErr := fmt.Errorf("%w: m", embedding.ErrRateLimited)
	alert := n.Notify(context.Background(), testRequest(t, "chunk-7"), lastErr, 3)

	require.Len(t, producer.sent, 1)
	assert.Equal(t, "failure-alerts", producer.sent[0].topic)
	assert.Equal(t, alert.AlertID, producer.sent[0].key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(producer.sent[0].value, &got))
	assert.Equal(t, model.FailureReason, got["alertType"])
	assert.Equal(t, "HIGH", got["severity"])
	assert.Equal(t, "chunk-7", got["chunkId"])
	assert.Equal(t, "tenant-1", got["tenantId"])
	assert.Equal(t, "doc-1", got["documentId"])
	assert.Equal(t, "2026-05-06T07:08:09Z", got["timestamp"])
	assert.Equal(t,
		"Failed to process embedding for chunk chunk-7 after 3 attempts: embedding: rate limited: m",
		got["message"])
	assert.NotContains(t, got, "chunkIds", "single-chunk alerts omit the list")
}

func TestNotify_BatchListsChunks(t *testing.T) {
	producer := &fakeProducer{}
	n := New([]Sink{NewKafkaSink(producer, "failure-alerts")})

	alert := n.Notify(context.Background(), testRequest(t, "c1", "c2"), errors.New("x"), 3)

	assert.Equal(t, "c1", alert.ChunkID)
	assert.Equal(t, []string{"c1", "c2"}, alert.ChunkIDs)
}

func TestNotify_RabbitRoutingBySeverity(t *testing.T) {
	amqp := &fakeAMQP{}
	n := New([]Sink{NewRabbitSink(amqp, "alerts")})

	n.Notify(context.Background(), testRequest(t, "c1"), errors.New("x"), 3)

	require.Len(t, amqp.sent, 1)
	assert.Equal(t, "alerts.high", amqp.sent[0].routingKey)
	assert.Equal(t, "HIGH", amqp.sent[0].headers["severity"])
}

func TestRoutingKey(t *testing.T) {
	alert := model.FailureAlert{Severity: "HIGH"}
	assert.Equal(t, "high", RoutingKey("", alert))
	assert.Equal(t, "ops.alerts.high", RoutingKey("ops.alerts", alert))
}

func TestNotify_NeverFails(t *testing.T) {
	m := metrics.NewMetrics(metrics.Config{ServiceName: "test"})
	amqp := &fakeAMQP{}
	n := New([]Sink{
		NewKafkaSink(&fakeProducer{err: errors.New("broker down")}, "failure-alerts"),
		NewRabbitSink(amqp, "alerts"),
	}, WithMetrics(m))

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), testRequest(t, "c1"), nil, 3)
	})
	assert.Len(t, amqp.sent, 1)

	expected := `
# HELP embedding_pipeline_side_channel_errors_total Dead-letter and alert deliveries that failed
# TYPE embedding_pipeline_side_channel_errors_total counter
embedding_pipeline_side_channel_errors_total{channel="alert",service="test",sink="kafka"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "embedding_pipeline_side_channel_errors_total"))
}
