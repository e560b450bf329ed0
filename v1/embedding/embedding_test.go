package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"inference ok", Config{Name: "m", Kind: KindInference, Endpoint: "http://x", Dimension: 4}, false},
		{"openai ok", Config{Name: "m", Kind: KindOpenAI, APIKey: "k", Dimension: 4}, false},
		{"missing name", Config{Kind: KindInference, Endpoint: "http://x", Dimension: 4}, true},
		{"zero dimension", Config{Name: "m", Kind: KindInference, Endpoint: "http://x"}, true},
		{"ollama without endpoint", Config{Name: "m", Kind: KindOllama, Dimension: 4}, true},
		{"openai without key", Config{Name: "m", Kind: KindOpenAI, Dimension: 4}, true},
		{"unknown kind", Config{Name: "m", Kind: "grpc", Dimension: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, Config{Name: "m", Kind: "grpc", Dimension: 4}.Validate(), ErrUnknownKind)
}

func TestCheckVectors(t *testing.T) {
	texts := []string{"a", "b"}
	assert.NoError(t, CheckVectors(texts, [][]float32{{1, 2}, {3, 4}}, 2))
	assert.ErrorIs(t, CheckVectors(texts, [][]float32{{1, 2}}, 2), ErrCountMismatch)
	assert.ErrorIs(t, CheckVectors(texts, [][]float32{{1, 2}, {3}}, 2), ErrDimensionMismatch)
}

func embeddingsServer(t *testing.T, status int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("unavailable"))
			return
		}

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "backend-model", req.Model)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		// Reverse order to check that indexes are honoured.
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(i), float32(len(req.Input[i]))}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func inferenceConfig(url string) Config {
	return Config{
		Name:      "local",
		Kind:      KindInference,
		Endpoint:  url,
		APIKey:    "secret",
		Model:     "backend-model",
		Dimension: 2,
	}
}

func TestInferenceProvider_Embed(t *testing.T) {
	var calls int32
	srv := embeddingsServer(t, http.StatusOK, &calls)
	defer srv.Close()

	p, err := New(inferenceConfig(srv.URL))
	require.NoError(t, err)

	vectors, err := p.Embed(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 3}}, vectors)
	assert.EqualValues(t, 1, calls, "one batched call")

	vectors, err = p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.EqualValues(t, 1, calls, "empty input never reaches the backend")
}

func TestInferenceProvider_HTTPErrors(t *testing.T) {
	var calls int32
	srv := embeddingsServer(t, http.StatusTooManyRequests, &calls)
	defer srv.Close()

	p, err := New(inferenceConfig(srv.URL))
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2}},
				{"object": "embedding", "index": 1, "embedding": []float32{0.3, 0.4}},
			},
		})
	}))
	defer srv.Close()

	p, err := New(Config{
		Name:      "openai-text-embedding-3-small",
		Kind:      KindOpenAI,
		APIKey:    "sk-test",
		Endpoint:  srv.URL,
		Model:     "text-embedding-3-small",
		Dimension: 2,
	})
	require.NoError(t, err)

	vectors, err := p.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
}

func newMockProvider(ctrl *gomock.Controller, dim int) *MockProvider {
	m := NewMockProvider(ctrl)
	m.EXPECT().Name().Return("mock").AnyTimes()
	m.EXPECT().Dimension().Return(dim).AnyTimes()
	return m
}

func TestGuard_DimensionMismatchIsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := newMockProvider(ctrl, 3)
	inner.EXPECT().Embed(gomock.Any(), []string{"a"}).Return([][]float32{{1, 2}}, nil)

	g := Guard(inner, Config{})
	_, err := g.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGuard_BreakerOpensAndRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := newMockProvider(ctrl, 2)
	boom := errors.New("connection refused")

	var transitions []gobreaker.State
	g := Guard(inner, Config{Breaker: BreakerConfig{
		MinRequests:  2,
		FailureRatio: 0.5,
		Timeout:      50 * time.Millisecond,
	}}, WithStateListener(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}))

	inner.EXPECT().Embed(gomock.Any(), gomock.Any()).Return(nil, boom).Times(2)
	for i := 0; i < 2; i++ {
		_, err := g.Embed(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	// Open: the backend is not called.
	_, err := g.Embed(context.Background(), []string{"a"})
	assert.True(t, IsCircuitOpen(err))

	time.Sleep(80 * time.Millisecond)
	inner.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([][]float32{{1, 2}}, nil)
	vectors, err := g.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}}, vectors)
	assert.Equal(t, gobreaker.StateClosed, g.State())

	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen, gobreaker.StateHalfOpen, gobreaker.StateClosed}, transitions)
}

func TestGuard_RateLimitRespectsDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := newMockProvider(ctrl, 1)
	inner.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([][]float32{{1}}, nil).Times(1)

	g := Guard(inner, Config{RateLimit: 0.01, Burst: 1, Timeout: 50 * time.Millisecond})

	_, err := g.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)

	_, err = g.Embed(context.Background(), []string{"b"})
	assert.ErrorIs(t, err, ErrRateLimited)
}
