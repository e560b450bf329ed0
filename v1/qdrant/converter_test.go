package qdrant

import (
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAll(t *testing.T) {
	assert.Nil(t, MatchAll())

	f := MatchAll(
		KeywordMatch{Key: "tenant_id", Value: "t1"},
		KeywordMatch{Key: "model_name", Value: "m"},
	)
	require.Len(t, f.Must, 2)
	assert.Equal(t, "tenant_id", f.Must[0].GetField().GetKey())
	assert.Equal(t, "t1", f.Must[0].GetField().GetMatch().GetKeyword())
	assert.Equal(t, "model_name", f.Must[1].GetField().GetKey())
}

func TestExtractPointID(t *testing.T) {
	id, err := extractPointID(qdrant.NewIDNum(42))
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = extractPointID(qdrant.NewID("6f1c2f2e-8b0b-4d43-9d5c-9a4d7f7f0b11"))
	require.NoError(t, err)
	assert.Equal(t, "6f1c2f2e-8b0b-4d43-9d5c-9a4d7f7f0b11", id)

	_, err = extractPointID(nil)
	assert.Error(t, err)
}

func TestConvertPayload(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		"tenant_id": "t1",
		"n":         int64(3),
		"score":     0.5,
		"ok":        true,
		"tags":      []any{"a", "b"},
		"nested":    map[string]any{"k": "v"},
	})

	got := convertPayload(payload)
	assert.Equal(t, "t1", got["tenant_id"])
	assert.Equal(t, int64(3), got["n"])
	assert.Equal(t, 0.5, got["score"])
	assert.Equal(t, true, got["ok"])
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, got["nested"])

	assert.Nil(t, convertPayload(nil))
}

func TestToPointStruct(t *testing.T) {
	ps := toPointStruct(Point{
		ID:      "6f1c2f2e-8b0b-4d43-9d5c-9a4d7f7f0b11",
		Vector:  []float32{1, 2},
		Payload: map[string]any{"chunk_id": "c1"},
	})
	assert.Equal(t, "6f1c2f2e-8b0b-4d43-9d5c-9a4d7f7f0b11", ps.GetId().GetUuid())
	assert.NotNil(t, ps.GetVectors().GetVector())
	assert.Equal(t, "c1", ps.GetPayload()["chunk_id"].GetStringValue())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)
}
