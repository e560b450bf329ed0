// Package vectorstore persists embeddings per tenant, document, chunk and model.
//
// Every record has a deterministic storage id derived from its key, so writing
// the same chunk twice replaces the earlier record instead of duplicating it.
// All reads and deletes are scoped by tenant.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyTenant    = errors.New("vectorstore: tenant id is empty")
	ErrTenantMismatch = errors.New("vectorstore: record belongs to another tenant or model")
)

// Record is one stored embedding.
type Record struct {
	StorageID  string
	TenantID   string
	DocumentID string
	ChunkID    string
	Model      string
	Text       string
	Vector     []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is implemented by every backend.
type Store interface {
	// StoreBatch upserts records for one tenant and model as a unit.
	StoreBatch(ctx context.Context, tenantID, model string, records []Record) error

	FindByTenant(ctx context.Context, tenantID string) ([]Record, error)
	FindByTenantAndModel(ctx context.Context, tenantID, model string) ([]Record, error)
	FindByTenantAndDocument(ctx context.Context, tenantID, documentID string) ([]Record, error)

	// DeleteByTenantAndModel removes every record of the tenant for model.
	DeleteByTenantAndModel(ctx context.Context, tenantID, model string) error
}

// namespace for storage ids.
var idNamespace = uuid.MustParse("6f1c9a52-3b0e-4d8e-9a7f-2c55e3b1d940")

// StorageID returns the deterministic id of the record key.
func StorageID(tenantID, documentID, chunkID, model string) string {
	key := tenantID + "\x00" + documentID + "\x00" + chunkID + "\x00" + model
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// prepare validates records against the call's tenant and model, fills
// missing scope fields and assigns storage ids. The input is not modified.
func prepare(tenantID, model string, records []Record, now time.Time) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	out := make([]Record, len(records))
	for i, r := range records {
		if r.TenantID == "" {
			r.TenantID = tenantID
		}
		if r.Model == "" {
			r.Model = model
		}
		if r.TenantID != tenantID || r.Model != model {
			return nil, fmt.Errorf("%w: chunk %s", ErrTenantMismatch, r.ChunkID)
		}
		r.StorageID = StorageID(r.TenantID, r.DocumentID, r.ChunkID, r.Model)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		out[i] = r
	}
	return out, nil
}
