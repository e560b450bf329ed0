package qdrant

import (
	"context"
	"fmt"
	"log"
	"sync"

	qdrant "github.com/qdrant/go-client/qdrant"
)

// QdrantClient wraps the official gRPC client with the point operations the vector store uses.
type QdrantClient struct {
	api *qdrant.Client
	cfg Config

	// ensured remembers collections already created or verified by this process.
	ensured sync.Map
}

// NewQdrantClient creates the gRPC client. It does not contact the server;
// call HealthCheck to verify connectivity.
func NewQdrantClient(cfg Config) (*QdrantClient, error) {
	cfg = cfg.withDefaults()
	log.Printf("[Qdrant] Connecting to endpoint: %s:%d", cfg.Endpoint, cfg.Port)

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Endpoint,
		Port:                   cfg.Port,
		APIKey:                 cfg.ApiKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: !cfg.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] failed to initialize client: %w", err)
	}

	return &QdrantClient{api: client, cfg: cfg}, nil
}

// HealthCheck asks the server for its version.
func (c *QdrantClient) HealthCheck(ctx context.Context) error {
	if c.api == nil {
		return fmt.Errorf("[Qdrant] client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("[Qdrant] health check failed: %w", err)
	}

	log.Printf("[Qdrant] Health check passed (title=%s, version=%s, endpoint=%s)", resp.GetTitle(), resp.GetVersion(), c.cfg.Endpoint)
	return nil
}

// Collection returns the configured collection name.
func (c *QdrantClient) Collection() string {
	return c.cfg.Collection
}

// Client exposes the underlying gRPC client.
func (c *QdrantClient) Client() *qdrant.Client {
	return c.api
}

func (c *QdrantClient) Close() error {
	if c.api == nil {
		return nil
	}
	log.Println("[Qdrant] Closing client")
	return c.api.Close()
}
