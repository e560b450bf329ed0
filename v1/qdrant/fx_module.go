package qdrant

import (
	"context"
	"log"

	"go.uber.org/fx"
)

// FXModule provides a *QdrantClient, health-checks it on start and closes it on stop.
var FXModule = fx.Module("qdrant",
	fx.Provide(NewQdrantClient),
	fx.Invoke(RegisterQdrantLifecycle),
)

func RegisterQdrantLifecycle(lc fx.Lifecycle, client *QdrantClient) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.HealthCheck(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Println("[Qdrant] Shutting down client")
			return client.Close()
		},
	})
}
