// Package qdrant wraps the official Qdrant gRPC client for the vector store.
//
// ────────────────────────────────────────────────────────────────
// Usage
// ────────────────────────────────────────────────────────────────
//
//	client, err := qdrant.NewQdrantClient(qdrant.Config{
//		Endpoint:   "localhost",
//		Port:       6334,
//		Collection: "embeddings",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.EnsureCollection(ctx, "embeddings", 1536, "tenant_id", "model_name")
//	err = client.Upsert(ctx, "embeddings", []qdrant.Point{{ID: id, Vector: v, Payload: meta}})
//
//	points, err := client.ScrollAll(ctx, "embeddings", qdrant.MatchAll(
//		qdrant.KeywordMatch{Key: "tenant_id", Value: "t-1"},
//	))
//
// ────────────────────────────────────────────────────────────────
// Notes
// ────────────────────────────────────────────────────────────────
//
// Point ids must be UUIDs or unsigned integers. Every request is bounded by
// Config.Timeout. Upserts wait for the write to be applied.
package qdrant
