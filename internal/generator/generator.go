// Package generator turns an embedding request into an embedding response.
//
// A request is served from the cache where possible; the remaining texts are
// embedded with a single provider call. Failure is whole-batch: either every
// text gets a vector or the response is FAILED with no results. Cache and
// vector store errors never fail a request.
package generator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/cache"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/vectorstore"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/tracer"
)

// Resolver maps a requested model name to a provider and the name actually used.
type Resolver interface {
	Resolve(name string) (embedding.Provider, string)
}

type Generator struct {
	resolver     Resolver
	cache        cache.Cache
	store        vectorstore.Store
	logger       logger.Logger
	metrics      *metrics.Metrics
	tracer       *tracer.Tracer
	storeTimeout time.Duration
	now          func() time.Time
}

type Option func(*Generator)

func WithLogger(l logger.Logger) Option { return func(g *Generator) { g.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Generator) { g.metrics = m } }

func WithTracer(t *tracer.Tracer) Option { return func(g *Generator) { g.tracer = t } }

// WithStoreTimeout bounds each vector store write. Zero leaves the caller's deadline.
func WithStoreTimeout(d time.Duration) Option { return func(g *Generator) { g.storeTimeout = d } }

// New builds a generator. A nil cache disables caching.
func New(resolver Resolver, c cache.Cache, store vectorstore.Store, opts ...Option) *Generator {
	if c == nil {
		c = cache.Nop{}
	}
	g := &Generator{
		resolver: resolver,
		cache:    c,
		store:    store,
		logger:   logger.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.NewMetrics(metrics.Config{})
	}
	if g.tracer == nil {
		g.tracer = tracer.NewNoop()
	}
	return g
}

// Generate produces vectors for every text of req. It never returns an error;
// a failed provider call yields a FAILED response carrying a *GenerationError.
func (g *Generator) Generate(ctx context.Context, req model.EmbeddingRequest) model.EmbeddingResponse {
	start := g.now()
	provider, modelName := g.resolver.Resolve(req.ModelName())

	ctx, span := g.tracer.StartSpan(ctx, "embedding.generate")
	defer span.End()
	g.tracer.SetAttributes(span, map[string]interface{}{
		"tenant_id":   req.TenantID(),
		"document_id": req.DocumentID(),
		"model":       modelName,
		"texts":       req.Len(),
	})

	if req.Len() == 0 {
		return model.SuccessResponse(req, modelName, []model.EmbeddingResult{}, g.now().Sub(start))
	}

	texts := req.Texts()
	vectors := make([][]float32, len(texts))

	// Misses are grouped by normalized text so duplicates cost one provider slot.
	var missKeys []string
	missIndex := make(map[string][]int)
	for i, text := range texts {
		if v, ok := g.lookup(ctx, req.TenantID(), modelName, text, provider.Dimension()); ok {
			vectors[i] = v
			continue
		}
		key := cache.Normalize(text)
		if _, seen := missIndex[key]; !seen {
			missKeys = append(missKeys, key)
		}
		missIndex[key] = append(missIndex[key], i)
	}

	if len(missKeys) > 0 {
		fresh, err := g.embed(ctx, provider, modelName, missKeys)
		if err != nil {
			genErr := &GenerationError{Model: modelName, Err: err}
			g.tracer.RecordErrorOnSpan(span, genErr)
			g.logger.WarnWithContext(ctx, "embedding generation failed", genErr, g.fields(req, modelName))
			return model.FailedResponse(req, modelName, genErr, g.now().Sub(start))
		}
		for j, key := range missKeys {
			for _, i := range missIndex[key] {
				vectors[i] = slices.Clone(fresh[j])
			}
			if err := g.cache.Put(ctx, req.TenantID(), modelName, key, fresh[j]); err != nil {
				g.metrics.IncStorageErrors("cache")
				g.logger.WarnWithContext(ctx, "cache write skipped", err, g.fields(req, modelName))
			}
		}
	}

	results := make([]model.EmbeddingResult, len(texts))
	for i, text := range texts {
		results[i] = model.EmbeddingResult{
			ChunkID: req.ChunkID(i),
			Text:    text,
			Vector:  vectors[i],
			Status:  model.StatusSuccess,
		}
	}
	g.persist(ctx, req, modelName, results)

	g.logger.DebugWithContext(ctx, "embeddings generated", nil, g.fields(req, modelName, map[string]interface{}{
		"cache_hits": len(texts) - countIndices(missIndex),
		"embedded":   len(missKeys),
	}))
	return model.SuccessResponse(req, modelName, results, g.now().Sub(start))
}

// lookup reads one text from the cache. Errors and vectors of the wrong
// dimension count as misses.
func (g *Generator) lookup(ctx context.Context, tenantID, modelName, text string, dimension int) ([]float32, bool) {
	v, found, err := g.cache.Get(ctx, tenantID, modelName, text)
	switch {
	case err != nil:
		g.metrics.ObserveCacheLookup("error")
		g.logger.WarnWithContext(ctx, "cache read failed, treating as miss", err, map[string]interface{}{
			"tenant_id": tenantID,
			"model":     modelName,
		})
		return nil, false
	case !found || len(v) != dimension:
		g.metrics.ObserveCacheLookup("miss")
		return nil, false
	default:
		g.metrics.ObserveCacheLookup("hit")
		return v, true
	}
}

// embed makes the single provider call for all misses and checks its shape.
func (g *Generator) embed(ctx context.Context, provider embedding.Provider, modelName string, texts []string) ([][]float32, error) {
	ctx, span := g.tracer.StartSpan(ctx, "embedding.provider")
	defer span.End()
	g.tracer.SetAttributes(span, map[string]interface{}{"model": modelName, "texts": len(texts)})

	started := time.Now()
	vectors, err := provider.Embed(ctx, texts)
	if err == nil {
		err = embedding.CheckVectors(texts, vectors, provider.Dimension())
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		g.tracer.RecordErrorOnSpan(span, err)
	}
	g.metrics.ObserveProviderCall(modelName, outcome, time.Since(started))
	return vectors, err
}

// persist upserts one record per result. Failures are logged and counted only.
func (g *Generator) persist(ctx context.Context, req model.EmbeddingRequest, modelName string, results []model.EmbeddingResult) {
	if g.store == nil {
		return
	}
	records := make([]vectorstore.Record, len(results))
	for i, r := range results {
		records[i] = vectorstore.Record{
			TenantID:   req.TenantID(),
			DocumentID: req.DocumentID(),
			ChunkID:    r.ChunkID,
			Model:      modelName,
			Text:       r.Text,
			Vector:     r.Vector,
		}
	}

	if g.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.storeTimeout)
		defer cancel()
	}
	if err := g.store.StoreBatch(ctx, req.TenantID(), modelName, records); err != nil {
		g.metrics.IncStorageErrors("vectorstore")
		g.logger.ErrorWithContext(ctx, "vector store write skipped", fmt.Errorf("store %d records: %w", len(records), err), g.fields(req, modelName))
	}
}

func (g *Generator) fields(req model.EmbeddingRequest, modelName string, extra ...map[string]interface{}) map[string]interface{} {
	f := map[string]interface{}{
		"tenant_id":   req.TenantID(),
		"document_id": req.DocumentID(),
		"chunk_id":    req.Key(),
		"model":       modelName,
	}
	for _, e := range extra {
		for k, v := range e {
			f[k] = v
		}
	}
	return f
}

func countIndices(m map[string][]int) int {
	n := 0
	for _, idx := range m {
		n += len(idx)
	}
	return n
}
