package vectorstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in a map. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) StoreBatch(_ context.Context, tenantID, model string, records []Record) error {
	prepared, err := prepare(tenantID, model, records, s.now().UTC())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range prepared {
		if old, ok := s.records[r.StorageID]; ok {
			r.CreatedAt = old.CreatedAt
		}
		r.Vector = append([]float32(nil), r.Vector...)
		s.records[r.StorageID] = r
	}
	return nil
}

func (s *MemoryStore) find(tenantID string, match func(Record) bool) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.TenantID == tenantID && match(r) {
			r.Vector = append([]float32(nil), r.Vector...)
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) FindByTenant(_ context.Context, tenantID string) ([]Record, error) {
	return s.find(tenantID, func(Record) bool { return true })
}

func (s *MemoryStore) FindByTenantAndModel(_ context.Context, tenantID, model string) ([]Record, error) {
	return s.find(tenantID, func(r Record) bool { return r.Model == model })
}

func (s *MemoryStore) FindByTenantAndDocument(_ context.Context, tenantID, documentID string) ([]Record, error) {
	return s.find(tenantID, func(r Record) bool { return r.DocumentID == documentID })
}

func (s *MemoryStore) DeleteByTenantAndModel(_ context.Context, tenantID, model string) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.TenantID == tenantID && r.Model == model {
			delete(s.records, id)
		}
	}
	return nil
}

// sortRecords orders by document, chunk and model for stable results.
func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		if a.ChunkID != b.ChunkID {
			return a.ChunkID < b.ChunkID
		}
		return a.Model < b.Model
	})
}
