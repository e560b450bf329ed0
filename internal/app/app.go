// Package app assembles the embedding worker from its fx modules.
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/config"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/coordinator"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/worker"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/kafka"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/minio"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/postgres"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/qdrant"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/rabbit"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/redis"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/tracer"
)

// Module returns the complete worker. Infrastructure modules are included
// only for the backends cfg selects.
func Module(cfg *config.Config) fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg, cfg.Logger, cfg.Kafka, cfg.Metrics, cfg.Tracer),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
		kafka.FXModule,
		fx.Provide(
			loggerAdapters,
			newCounters,
			newRegistry,
			newGenerator,
			newDeadLetterPublisher,
			newNotifier,
			newCoordinator,
			newWorker,
		),
		fx.Invoke(registerHandlers, RegisterWorkerLifecycle),
	}

	switch cfg.Cache.Backend {
	case config.CacheRedis:
		opts = append(opts, fx.Supply(cfg.Redis), redis.FXModule, fx.Provide(newRedisCache))
	case config.CacheMemory:
		opts = append(opts, fx.Provide(newMemoryCache))
	default:
		opts = append(opts, fx.Provide(newNopCache))
	}

	switch cfg.VectorStore.Backend {
	case config.StoreQdrant:
		opts = append(opts, fx.Supply(cfg.Qdrant), qdrant.FXModule, fx.Provide(newQdrantStore))
	case config.StorePostgres:
		opts = append(opts, fx.Supply(cfg.Postgres), postgres.FXModule, fx.Provide(newPostgresStore))
	default:
		opts = append(opts, fx.Provide(newMemoryStore))
	}

	if cfg.DeadLetter.Archive {
		opts = append(opts,
			fx.Supply(cfg.DeadLetter.Minio),
			minio.FXModule,
			fx.Provide(fx.Annotate(newArchiveSink, fx.ResultTags(`group:"deadletter_sinks"`))),
		)
	}
	if cfg.Alerts.Rabbit {
		opts = append(opts,
			fx.Supply(cfg.Alerts.RabbitOptions),
			rabbit.FXModule,
			fx.Provide(fx.Annotate(newRabbitSink, fx.ResultTags(`group:"alert_sinks"`))),
		)
	}

	return fx.Options(opts...)
}

// Loggers groups the logger views the infrastructure packages accept.
type Loggers struct {
	fx.Out

	Kafka     kafka.Logger
	Redis     redis.Logger
	Minio     minio.Logger
	Rabbit    rabbit.Logger
	Tracer    tracer.Logger
	Embedding embedding.Logger
}

func loggerAdapters(l logger.Logger) Loggers {
	return Loggers{Kafka: l, Redis: l, Minio: l, Rabbit: l, Tracer: l, Embedding: l}
}

// WorkerLifecycleParams groups what the worker lifecycle needs.
type WorkerLifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Worker     *worker.Worker
	Logger     logger.Logger
}

// RegisterWorkerLifecycle runs the worker between start and stop. The worker
// is registered last, so it stops first and drains before the clients close.
// A worker that exits on its own shuts the application down.
func RegisterWorkerLifecycle(p WorkerLifecycleParams) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
		runErr error
	)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				runErr = p.Worker.Run(ctx)
				if ctx.Err() == nil {
					p.Logger.Error("embedding worker exited unexpectedly", runErr, nil)
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				if errors.Is(runErr, worker.ErrShutdownTimeout) {
					return runErr
				}
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// newCounters is shared by the coordinator and the health handler.
func newCounters() *coordinator.Counters { return &coordinator.Counters{} }
