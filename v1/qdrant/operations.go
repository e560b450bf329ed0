package qdrant

import (
	"context"
	"fmt"
	"log"
	"strings"

	qdrant "github.com/qdrant/go-client/qdrant"
)

// EnsureCollection creates the collection with cosine distance and the given
// vector size if it does not exist, plus keyword indexes on indexedFields.
// Results are memoized per process.
func (c *QdrantClient) EnsureCollection(ctx context.Context, name string, vectorSize uint64, indexedFields ...string) error {
	if name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if _, ok := c.ensured.Load(name); ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	exists, err := c.api.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("[Qdrant] failed to check collection '%s': %w", name, err)
	}

	if !exists {
		log.Printf("[Qdrant] Collection '%s' not found, creating it (size=%d)", name, vectorSize)
		err = c.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("[Qdrant] failed to create collection '%s': %w", name, err)
		}

		wait := true
		for _, field := range indexedFields {
			_, err := c.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: name,
				FieldName:      field,
				FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
				Wait:           &wait,
			})
			if err != nil {
				return fmt.Errorf("[Qdrant] failed to index '%s' on '%s': %w", field, name, err)
			}
		}
	}

	c.ensured.Store(name, struct{}{})
	return nil
}

// Upsert writes points in chunks of DefaultBatchSize and waits for each chunk
// to be applied. Re-upserting a point with the same ID replaces it.
func (c *QdrantClient) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wait := true
	for start := 0; start < len(points); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, toPointStruct(p))
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		_, err := c.api.Upsert(reqCtx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         batch,
			Wait:           &wait,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("[Qdrant] batch upsert failed at [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// ScrollAll returns every point matching filter, with vectors and payload.
// Qdrant's scroll offset is inclusive, so each page after the first starts at
// the last id of the previous page and that point is skipped.
func (c *QdrantClient) ScrollAll(ctx context.Context, collection string, filter *qdrant.Filter) ([]Point, error) {
	var (
		out    []Point
		offset *qdrant.PointId
		lastID string
	)
	limit := uint32(DefaultScrollPage + 1)

	for {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		page, err := c.api.Scroll(reqCtx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("[Qdrant] scroll failed: %w", err)
		}

		added := 0
		for _, rp := range page {
			p, err := fromRetrievedPoint(rp)
			if err != nil {
				return nil, err
			}
			if offset != nil && p.ID == lastID {
				continue
			}
			out = append(out, p)
			added++
		}

		if len(page) < int(limit) || added == 0 {
			return out, nil
		}
		last := page[len(page)-1]
		offset = last.GetId()
		lastID = out[len(out)-1].ID
	}
}

// ListCollections returns the names of all collections starting with prefix.
func (c *QdrantClient) ListCollections(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	names, err := c.api.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] list collections failed: %w", err)
	}
	out := names[:0]
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// DeleteByFilter removes every point matching filter. A nil filter is rejected
// so a programming error cannot wipe the collection.
func (c *QdrantClient) DeleteByFilter(ctx context.Context, collection string, filter *qdrant.Filter) error {
	if filter == nil {
		return fmt.Errorf("[Qdrant] refusing to delete without a filter")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	wait := true
	resp, err := c.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("[Qdrant] delete failed: %w", err)
	}

	log.Printf("[Qdrant] Delete completed (status=%s, collection=%s)", resp.GetStatus().String(), collection)
	return nil
}
