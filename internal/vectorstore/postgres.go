package vectorstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/postgres"
)

const upsertBatchSize = 200

// embeddingRow is the relational form of a Record. The vector is kept as jsonb.
type embeddingRow struct {
	ID         string    `gorm:"primaryKey;type:uuid"`
	TenantID   string    `gorm:"not null;index:idx_embedding_tenant_model,priority:1;index:idx_embedding_tenant_document,priority:1"`
	DocumentID string    `gorm:"not null;index:idx_embedding_tenant_document,priority:2"`
	ChunkID    string    `gorm:"not null"`
	Model      string    `gorm:"not null;index:idx_embedding_tenant_model,priority:2"`
	Text       string    `gorm:"type:text"`
	Vector     []float32 `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (embeddingRow) TableName() string { return "embedding_records" }

// PostgresStore keeps records in a single table through gorm.
type PostgresStore struct {
	pg  *postgres.Postgres
	now func() time.Time
}

func NewPostgresStore(pg *postgres.Postgres) *PostgresStore {
	return &PostgresStore{pg: pg, now: time.Now}
}

// Migrate creates or updates the table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.pg.DB().WithContext(ctx).AutoMigrate(&embeddingRow{}); err != nil {
		return fmt.Errorf("vectorstore: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreBatch(ctx context.Context, tenantID, model string, records []Record) error {
	prepared, err := prepare(tenantID, model, records, s.now().UTC())
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	rows := make([]embeddingRow, len(prepared))
	for i, r := range prepared {
		rows[i] = embeddingRow{
			ID:         r.StorageID,
			TenantID:   r.TenantID,
			DocumentID: r.DocumentID,
			ChunkID:    r.ChunkID,
			Model:      r.Model,
			Text:       r.Text,
			Vector:     r.Vector,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		}
	}

	err = s.pg.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "vector", "updated_at"}),
		}).CreateInBatches(rows, upsertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("vectorstore: store batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) find(ctx context.Context, tenantID string, where map[string]any) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	query := s.pg.DB().WithContext(ctx).Where("tenant_id = ?", tenantID)
	if len(where) > 0 {
		query = query.Where(where)
	}

	var rows []embeddingRow
	err := query.Order("document_id, chunk_id, model").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vectorstore: find: %w", err)
	}

	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record{
			StorageID:  r.ID,
			TenantID:   r.TenantID,
			DocumentID: r.DocumentID,
			ChunkID:    r.ChunkID,
			Model:      r.Model,
			Text:       r.Text,
			Vector:     r.Vector,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return out, nil
}

func (s *PostgresStore) FindByTenant(ctx context.Context, tenantID string) ([]Record, error) {
	return s.find(ctx, tenantID, nil)
}

func (s *PostgresStore) FindByTenantAndModel(ctx context.Context, tenantID, model string) ([]Record, error) {
	return s.find(ctx, tenantID, map[string]any{"model": model})
}

func (s *PostgresStore) FindByTenantAndDocument(ctx context.Context, tenantID, documentID string) ([]Record, error) {
	return s.find(ctx, tenantID, map[string]any{"document_id": documentID})
}

func (s *PostgresStore) DeleteByTenantAndModel(ctx context.Context, tenantID, model string) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	err := s.pg.DB().WithContext(ctx).
		Where("tenant_id = ? AND model = ?", tenantID, model).
		Delete(&embeddingRow{}).Error
	if err != nil {
		return fmt.Errorf("vectorstore: delete: %w", err)
	}
	return nil
}
