package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/cache"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/registry"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/vectorstore"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
)

const (
	defaultModel = "openai-text-embedding-3-small"
	otherModel   = "sentence-transformers-all-minilm-l6-v2"
)

type fixture struct {
	gen      *Generator
	def      *embedding.MockProvider
	other    *embedding.MockProvider
	cache    *cache.MemoryCache
	store    *vectorstore.MemoryStore
	metrics  *metrics.Metrics
	registry *registry.Registry
}

func newMockProvider(ctrl *gomock.Controller, name string, dim int) *embedding.MockProvider {
	p := embedding.NewMockProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	p.EXPECT().Dimension().Return(dim).AnyTimes()
	return p
}

func newFixture(t *testing.T, c cache.Cache, s vectorstore.Store) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		def:     newMockProvider(ctrl, defaultModel, 3),
		other:   newMockProvider(ctrl, otherModel, 2),
		cache:   cache.NewMemoryCache(time.Hour),
		store:   vectorstore.NewMemoryStore(),
		metrics: metrics.NewMetrics(metrics.Config{ServiceName: "test"}),
	}
	reg, err := registry.New(defaultModel,
		registry.Entry{Provider: f.def, Aliases: []string{"default"}},
		registry.Entry{Provider: f.other},
	)
	require.NoError(t, err)
	f.registry = reg

	if c == nil {
		c = f.cache
	}
	if s == nil {
		s = f.store
	}
	f.gen = New(reg, c, s, WithMetrics(f.metrics))
	return f
}

func vec(seed float32, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)/10
	}
	return v
}

func newRequest(t *testing.T, modelName string, texts ...string) model.EmbeddingRequest {
	t.Helper()
	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = fmt.Sprintf("c%d", i+1)
	}
	req, err := model.NewEmbeddingRequest("tenant-1", "doc-1", modelName, texts, ids)
	require.NoError(t, err)
	return req
}

func TestGenerate_AllMisses(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.def.EXPECT().
		Embed(gomock.Any(), []string{"alpha", "beta"}).
		Return([][]float32{vec(1, 3), vec(2, 3)}, nil).
		Times(1)

	resp := f.gen.Generate(ctx, newRequest(t, "", "alpha", "beta"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, defaultModel, resp.ModelName)
	assert.Equal(t, "tenant-1", resp.TenantID)
	assert.Equal(t, "doc-1", resp.DocumentID)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, "alpha", resp.Results[0].Text)
	assert.Equal(t, vec(1, 3), resp.Results[0].Vector)
	assert.Equal(t, vec(2, 3), resp.Results[1].Vector)
	for _, r := range resp.Results {
		assert.Equal(t, model.StatusSuccess, r.Status)
	}

	v, found, err := f.cache.Get(ctx, "tenant-1", defaultModel, "beta")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vec(2, 3), v)

	stored, err := f.store.FindByTenantAndModel(ctx, "tenant-1", defaultModel)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "c1", stored[0].ChunkID)
	assert.Equal(t, "alpha", stored[0].Text)
}

func TestGenerate_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t, cache.Nop{}, nil)
	ctx := context.Background()

	f.def.EXPECT().
		Embed(gomock.Any(), []string{"alpha", "beta"}).
		Return([][]float32{vec(1, 3), vec(2, 3)}, nil).
		Times(2)

	req := newRequest(t, "", "alpha", "beta")

	type key struct{ id, chunk string }
	snapshot := func() map[key][]float32 {
		recs, err := f.store.FindByTenant(ctx, "tenant-1")
		require.NoError(t, err)
		out := make(map[key][]float32, len(recs))
		for _, r := range recs {
			out[key{r.StorageID, r.ChunkID}] = r.Vector
		}
		return out
	}

	require.True(t, f.gen.Generate(ctx, req).Succeeded())
	first := snapshot()
	require.True(t, f.gen.Generate(ctx, req).Succeeded())

	assert.Len(t, first, 2)
	assert.Equal(t, first, snapshot())
}

func TestGenerate_PartialHitsEmbedOnlyMisses(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.cache.Put(ctx, "tenant-1", defaultModel, "alpha", vec(9, 3)))

	f.def.EXPECT().
		Embed(gomock.Any(), []string{"beta"}).
		Return([][]float32{vec(2, 3)}, nil)

	resp := f.gen.Generate(ctx, newRequest(t, defaultModel, "alpha", "beta"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, vec(9, 3), resp.Results[0].Vector)
	assert.Equal(t, vec(2, 3), resp.Results[1].Vector)

	stored, err := f.store.FindByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "hits are persisted too")
}

func TestGenerate_AllHitsSkipProvider(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.cache.Put(ctx, "tenant-1", defaultModel, "alpha", vec(1, 3)))

	resp := f.gen.Generate(ctx, newRequest(t, "", "  alpha\t"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, vec(1, 3), resp.Results[0].Vector)
	assert.Equal(t, "  alpha\t", resp.Results[0].Text, "results keep the original text")
}

func TestGenerate_DeduplicatesNormalizedMisses(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.def.EXPECT().
		Embed(gomock.Any(), []string{"same text", "other"}).
		Return([][]float32{vec(1, 3), vec(2, 3)}, nil)

	resp := f.gen.Generate(context.Background(), newRequest(t, "", "same text", " same   text ", "other"))

	require.True(t, resp.Succeeded())
	require.Len(t, resp.Results, 3)
	assert.Equal(t, resp.Results[0].Vector, resp.Results[1].Vector)
	assert.Equal(t, vec(2, 3), resp.Results[2].Vector)

	resp.Results[0].Vector[0] = 42
	assert.NotEqual(t, float32(42), resp.Results[1].Vector[0], "duplicates do not share backing arrays")
}

func TestGenerate_EmptyRequest(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.gen.Generate(context.Background(), newRequest(t, ""))

	require.True(t, resp.Succeeded())
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, defaultModel, resp.ModelName)
}

func TestGenerate_UnknownModelFallsBackToDefault(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.def.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([][]float32{vec(1, 3)}, nil)

	resp := f.gen.Generate(context.Background(), newRequest(t, "no-such-model", "alpha"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, defaultModel, resp.ModelName)
}

func TestGenerate_UsesRequestedModel(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.other.EXPECT().Embed(gomock.Any(), []string{"alpha"}).Return([][]float32{vec(1, 2)}, nil)

	resp := f.gen.Generate(context.Background(), newRequest(t, otherModel, "alpha"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, otherModel, resp.ModelName)
	assert.Len(t, resp.Results[0].Vector, 2)
}

func TestGenerate_ProviderFailureIsWholeBatch(t *testing.T) {
	tests := []struct {
		name     string
		vectors  [][]float32
		err      error
		wantType string
	}{
		{name: "provider error", err: &embedding.ProviderError{Model: defaultModel, StatusCode: 500, Err: errors.New("boom")}, wantType: "ProviderError"},
		{name: "circuit open", err: fmt.Errorf("%w: %s", embedding.ErrCircuitOpen, defaultModel), wantType: "CircuitOpenError"},
		{name: "rate limited", err: embedding.ErrRateLimited, wantType: "RateLimitError"},
		{name: "timeout", err: context.DeadlineExceeded, wantType: "TimeoutError"},
		{name: "too few vectors", vectors: [][]float32{vec(1, 3)}, wantType: "InvalidResponseError"},
		{name: "wrong dimension", vectors: [][]float32{vec(1, 3), vec(2, 4)}, wantType: "InvalidResponseError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			ctx := context.Background()
			require.NoError(t, f.cache.Put(ctx, "tenant-1", defaultModel, "cached", vec(5, 3)))
			f.def.EXPECT().Embed(gomock.Any(), []string{"alpha", "beta"}).Return(tt.vectors, tt.err)

			resp := f.gen.Generate(ctx, newRequest(t, "", "cached", "alpha", "beta"))

			assert.Equal(t, model.StatusFailed, resp.Status)
			assert.Empty(t, resp.Results)
			require.Error(t, resp.Err)

			var genErr *GenerationError
			require.ErrorAs(t, resp.Err, &genErr)
			assert.Equal(t, defaultModel, genErr.Model)
			assert.Equal(t, tt.wantType, model.ErrorTypeName(resp.Err))
			if tt.err != nil {
				assert.ErrorIs(t, resp.Err, tt.err)
			}

			stored, err := f.store.FindByTenant(ctx, "tenant-1")
			require.NoError(t, err)
			assert.Empty(t, stored, "nothing is persisted for a failed request")
			_, found, _ := f.cache.Get(ctx, "tenant-1", defaultModel, "alpha")
			assert.False(t, found)
		})
	}
}

type failingCache struct{ err error }

func (c failingCache) Get(context.Context, string, string, string) ([]float32, bool, error) {
	return nil, false, c.err
}

func (c failingCache) Put(context.Context, string, string, string, []float32) error { return c.err }

func (c failingCache) InvalidateTenantModel(context.Context, string, string) error { return c.err }

type failingStore struct {
	vectorstore.Store
	calls int
}

func (s *failingStore) StoreBatch(context.Context, string, string, []vectorstore.Record) error {
	s.calls++
	return errors.New("connection refused")
}

func TestGenerate_CacheErrorsAreMisses(t *testing.T) {
	f := newFixture(t, failingCache{err: errors.New("redis down")}, nil)
	f.def.EXPECT().Embed(gomock.Any(), []string{"alpha"}).Return([][]float32{vec(1, 3)}, nil)

	resp := f.gen.Generate(context.Background(), newRequest(t, "", "alpha"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, vec(1, 3), resp.Results[0].Vector)

	expected := `
# HELP embedding_pipeline_cache_lookups_total Embedding cache lookups
# TYPE embedding_pipeline_cache_lookups_total counter
embedding_pipeline_cache_lookups_total{result="error",service="test"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry, strings.NewReader(expected), "embedding_pipeline_cache_lookups_total"))
}

func TestGenerate_StoreErrorsAreSwallowed(t *testing.T) {
	store := &failingStore{}
	f := newFixture(t, nil, store)
	f.def.EXPECT().Embed(gomock.Any(), []string{"alpha"}).Return([][]float32{vec(1, 3)}, nil)

	resp := f.gen.Generate(context.Background(), newRequest(t, "", "alpha"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, 1, store.calls, "store is written once and not retried")

	expected := `
# HELP embedding_pipeline_storage_errors_total Vector store writes that failed and were skipped
# TYPE embedding_pipeline_storage_errors_total counter
embedding_pipeline_storage_errors_total{backend="vectorstore",service="test"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry, strings.NewReader(expected), "embedding_pipeline_storage_errors_total"))
}

func TestGenerate_CachedVectorOfWrongDimensionIsMiss(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.cache.Put(ctx, "tenant-1", defaultModel, "alpha", vec(1, 5)))
	f.def.EXPECT().Embed(gomock.Any(), []string{"alpha"}).Return([][]float32{vec(2, 3)}, nil)

	resp := f.gen.Generate(ctx, newRequest(t, "", "alpha"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, vec(2, 3), resp.Results[0].Vector)
}

func TestGenerate_TenantIsolation(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.cache.Put(ctx, "tenant-2", defaultModel, "alpha", vec(7, 3)))
	f.def.EXPECT().Embed(gomock.Any(), []string{"alpha"}).Return([][]float32{vec(1, 3)}, nil)

	resp := f.gen.Generate(ctx, newRequest(t, "", "alpha"))

	require.True(t, resp.Succeeded())
	assert.Equal(t, vec(1, 3), resp.Results[0].Vector, "another tenant's cache entry is never served")

	other, err := f.store.FindByTenant(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGenerationErrorType(t *testing.T) {
	open := &GenerationError{Model: "m", Err: fmt.Errorf("%w: m", embedding.ErrCircuitOpen)}
	assert.Equal(t, "CircuitOpenError", model.ErrorTypeName(fmt.Errorf("attempt 3: %w", open)))

	other := &GenerationError{Model: "m", Err: &os.PathError{Op: "open", Path: "/models/m", Err: errors.New("missing")}}
	assert.Equal(t, "PathError", other.ErrorType())
	assert.Contains(t, other.Error(), "model m")
}
