package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/qdrant"
)

// Payload field names.
const (
	fieldTenant    = "tenant_id"
	fieldDocument  = "document_id"
	fieldChunk     = "chunk_id"
	fieldModel     = "model"
	fieldText      = "text"
	fieldUpdatedAt = "updated_at"
)

// ErrCollectionCollision is returned by CheckModelNames when two models would
// share a collection.
var ErrCollectionCollision = errors.New("vectorstore: model names share a collection")

// QdrantStore keeps one collection per model, named "<base>_<model>", since
// vector sizes differ between models. It only reads and deletes from the
// collections of models it was built with or has stored into, so unrelated
// collections that share the base prefix are left alone.
type QdrantStore struct {
	client *qdrant.QdrantClient
	base   string
	now    func() time.Time

	mu    sync.RWMutex
	owned map[string]struct{}
}

// NewQdrantStore returns a store over client's base collection. models are the
// configured model names.
func NewQdrantStore(client *qdrant.QdrantClient, models ...string) *QdrantStore {
	s := &QdrantStore{client: client, base: client.Collection(), now: time.Now, owned: map[string]struct{}{}}
	for _, m := range models {
		s.owned[CollectionFor(s.base, m)] = struct{}{}
	}
	return s
}

var unsafeCollectionChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CollectionFor returns the collection holding model's vectors.
func CollectionFor(base, model string) string {
	return base + "_" + unsafeCollectionChars.ReplaceAllString(strings.ToLower(model), "_")
}

// CheckModelNames fails with ErrCollectionCollision when two distinct model
// names map to the same collection, e.g. "a.b" and "a_b".
func CheckModelNames(models []string) error {
	seen := make(map[string]string, len(models))
	var errs []error
	for _, m := range models {
		c := CollectionFor("", m)
		if prev, ok := seen[c]; ok && prev != m {
			errs = append(errs, fmt.Errorf("%w: %q and %q", ErrCollectionCollision, prev, m))
			continue
		}
		seen[c] = m
	}
	return errors.Join(errs...)
}

func (s *QdrantStore) StoreBatch(ctx context.Context, tenantID, model string, records []Record) error {
	prepared, err := prepare(tenantID, model, records, s.now().UTC())
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	collection := CollectionFor(s.base, model)
	size := uint64(len(prepared[0].Vector))
	if err := s.client.EnsureCollection(ctx, collection, size, fieldTenant, fieldDocument, fieldModel); err != nil {
		return err
	}
	s.own(collection)

	points := make([]qdrant.Point, len(prepared))
	for i, r := range prepared {
		points[i] = qdrant.Point{
			ID:     r.StorageID,
			Vector: r.Vector,
			Payload: map[string]any{
				fieldTenant:    r.TenantID,
				fieldDocument:  r.DocumentID,
				fieldChunk:     r.ChunkID,
				fieldModel:     r.Model,
				fieldText:      r.Text,
				fieldUpdatedAt: r.UpdatedAt.Format(time.RFC3339Nano),
			},
		}
	}
	return s.client.Upsert(ctx, collection, points)
}

func (s *QdrantStore) scroll(ctx context.Context, collections []string, match ...qdrant.KeywordMatch) ([]Record, error) {
	filter := qdrant.MatchAll(match...)
	var out []Record
	for _, c := range collections {
		points, err := s.client.ScrollAll(ctx, c, filter)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			out = append(out, fromPoint(p))
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *QdrantStore) own(collection string) {
	s.mu.Lock()
	s.owned[collection] = struct{}{}
	s.mu.Unlock()
}

// allCollections returns the owned collections that exist.
func (s *QdrantStore) allCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx, s.base+"_")
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterOwned(names, s.owned), nil
}

func filterOwned(names []string, owned map[string]struct{}) []string {
	var out []string
	for _, n := range names {
		if _, ok := owned[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *QdrantStore) FindByTenant(ctx context.Context, tenantID string) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	cols, err := s.allCollections(ctx)
	if err != nil {
		return nil, err
	}
	return s.scroll(ctx, cols, qdrant.KeywordMatch{Key: fieldTenant, Value: tenantID})
}

func (s *QdrantStore) FindByTenantAndModel(ctx context.Context, tenantID, model string) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	cols, err := s.modelCollection(ctx, model)
	if err != nil || len(cols) == 0 {
		return nil, err
	}
	return s.scroll(ctx, cols,
		qdrant.KeywordMatch{Key: fieldTenant, Value: tenantID},
		qdrant.KeywordMatch{Key: fieldModel, Value: model},
	)
}

func (s *QdrantStore) FindByTenantAndDocument(ctx context.Context, tenantID, documentID string) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	cols, err := s.allCollections(ctx)
	if err != nil {
		return nil, err
	}
	return s.scroll(ctx, cols,
		qdrant.KeywordMatch{Key: fieldTenant, Value: tenantID},
		qdrant.KeywordMatch{Key: fieldDocument, Value: documentID},
	)
}

func (s *QdrantStore) DeleteByTenantAndModel(ctx context.Context, tenantID, model string) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	cols, err := s.modelCollection(ctx, model)
	if err != nil {
		return err
	}
	for _, c := range cols {
		err := s.client.DeleteByFilter(ctx, c, qdrant.MatchAll(
			qdrant.KeywordMatch{Key: fieldTenant, Value: tenantID},
			qdrant.KeywordMatch{Key: fieldModel, Value: model},
		))
		if err != nil {
			return fmt.Errorf("vectorstore: delete %s/%s: %w", tenantID, model, err)
		}
	}
	return nil
}

// modelCollection returns model's collection if it exists.
func (s *QdrantStore) modelCollection(ctx context.Context, model string) ([]string, error) {
	want := CollectionFor(s.base, model)
	cols, err := s.allCollections(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c == want {
			return []string{c}, nil
		}
	}
	return nil, nil
}

func fromPoint(p qdrant.Point) Record {
	str := func(k string) string {
		v, _ := p.Payload[k].(string)
		return v
	}
	r := Record{
		StorageID:  p.ID,
		TenantID:   str(fieldTenant),
		DocumentID: str(fieldDocument),
		ChunkID:    str(fieldChunk),
		Model:      str(fieldModel),
		Text:       str(fieldText),
		Vector:     p.Vector,
	}
	if ts, err := time.Parse(time.RFC3339Nano, str(fieldUpdatedAt)); err == nil {
		r.UpdatedAt = ts
		r.CreatedAt = ts
	}
	return r
}
