package app

import (
	"context"

	"github.com/sony/gobreaker"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/cache"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/config"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/coordinator"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/deadletter"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/generator"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/notifier"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/registry"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/vectorstore"
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

func newRegistry(cfg *config.Config, l embedding.Logger, m *metrics.Metrics) (*registry.Registry, error) {
	return registry.FromConfigs(cfg.Models.Default, cfg.Models.List,
		embedding.WithLogger(l),
		embedding.WithStateListener(func(model string, _, to gobreaker.State) {
			m.SetBreakerState(model, float64(to))
		}),
	)
}

func newRedisCache(cfg *config.Config, client *redis.RedisClient) cache.Cache {
	var c cache.Cache = cache.NewRedisCache(client, cfg.Cache.KeyPrefix, cfg.Cache.TTL, cfg.Cache.Timeout)
	if cfg.Cache.LocalSize > 0 {
		c = cache.NewTiered(c, cfg.Cache.LocalSize, cfg.Cache.TTL)
	}
	return c
}

func newMemoryCache(cfg *config.Config) cache.Cache {
	return cache.NewMemoryCache(cfg.Cache.TTL)
}

func newNopCache() cache.Cache { return cache.Nop{} }

func newQdrantStore(cfg *config.Config, client *qdrant.QdrantClient) vectorstore.Store {
	models := make([]string, 0, len(cfg.Models.List))
	for _, m := range cfg.Models.List {
		models = append(models, m.Name)
	}
	return vectorstore.NewQdrantStore(client, models...)
}

// newPostgresStore creates the embeddings table on start.
func newPostgresStore(lc fx.Lifecycle, pg *postgres.Postgres, l logger.Logger) vectorstore.Store {
	store := vectorstore.NewPostgresStore(pg)
	migrateOnStart(lc, store, l)
	return store
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func migrateOnStart(lc fx.Lifecycle, m migrator, l logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			l.InfoWithContext(ctx, "migrating embedding records table", nil)
			if err := m.Migrate(ctx); err != nil {
				l.ErrorWithContext(ctx, "embedding records migration failed", err)
				return err
			}
			return nil
		},
	})
}

func newMemoryStore() vectorstore.Store { return vectorstore.NewMemoryStore() }

func newGenerator(cfg *config.Config, reg *registry.Registry, c cache.Cache, store vectorstore.Store,
	l logger.Logger, m *metrics.Metrics, t *tracer.Tracer) *generator.Generator {
	return generator.New(reg, c, store,
		generator.WithLogger(l),
		generator.WithMetrics(m),
		generator.WithTracer(t),
		generator.WithStoreTimeout(cfg.VectorStore.Timeout),
	)
}

// DeadLetterParams collects the dead-letter sinks. The Kafka sink is always
// present; the archive sink joins the group when archiving is enabled.
type DeadLetterParams struct {
	fx.In

	Config  *config.Config
	Kafka   *kafka.KafkaClient
	Extra   []deadletter.Sink `group:"deadletter_sinks"`
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func newDeadLetterPublisher(p DeadLetterParams) *deadletter.Publisher {
	sinks := append([]deadletter.Sink{deadletter.NewKafkaSink(p.Kafka, p.Config.Topics.DeadLetter)}, p.Extra...)
	return deadletter.NewPublisher(sinks,
		deadletter.WithLogger(p.Logger),
		deadletter.WithMetrics(p.Metrics),
		deadletter.WithTimeout(p.Config.Worker.PublishTimeout),
	)
}

func newArchiveSink(client *minio.MinioClient) deadletter.Sink {
	return deadletter.NewArchiveSink(client)
}

// NotifierParams collects the alert sinks the same way DeadLetterParams does.
type NotifierParams struct {
	fx.In

	Config  *config.Config
	Kafka   *kafka.KafkaClient
	Extra   []notifier.Sink `group:"alert_sinks"`
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func newNotifier(p NotifierParams) *notifier.Notifier {
	sinks := append([]notifier.Sink{notifier.NewKafkaSink(p.Kafka, p.Config.Topics.Alerts)}, p.Extra...)
	return notifier.New(sinks,
		notifier.WithLogger(p.Logger),
		notifier.WithMetrics(p.Metrics),
	)
}

func newRabbitSink(cfg *config.Config, client *rabbit.RabbitClient) notifier.Sink {
	return notifier.NewRabbitSink(client, cfg.Alerts.RabbitOptions.Exchange.RoutingKey)
}

// CoordinatorParams groups the dependencies of the coordinator.
type CoordinatorParams struct {
	fx.In

	Config     *config.Config
	Generator  *generator.Generator
	DeadLetter *deadletter.Publisher
	Notifier   *notifier.Notifier
	Kafka      *kafka.KafkaClient
	Counters   *coordinator.Counters
	Logger     logger.Logger
	Metrics    *metrics.Metrics
	Tracer     *tracer.Tracer
}

func newCoordinator(p CoordinatorParams) *coordinator.Coordinator {
	cfg := coordinator.Config{
		CompletionTopic: p.Config.Topics.Completion,
		PublishTimeout:  p.Config.Worker.PublishTimeout,
		Retry: coordinator.RetryPolicy{
			MaxAttempts:     p.Config.Retry.MaxAttempts,
			InitialInterval: p.Config.Retry.InitialInterval,
			MaxInterval:     p.Config.Retry.MaxInterval,
			Multiplier:      p.Config.Retry.Multiplier,
		},
	}
	return coordinator.New(cfg, p.Generator, p.DeadLetter, p.Notifier, p.Kafka, p.Counters,
		coordinator.WithLogger(p.Logger),
		coordinator.WithMetrics(p.Metrics),
		coordinator.WithTracer(p.Tracer),
	)
}

func newWorker(cfg *config.Config, client *kafka.KafkaClient, c *coordinator.Coordinator, l logger.Logger) (*worker.Worker, error) {
	return worker.New(worker.Config{
		Concurrency:     cfg.Worker.Concurrency,
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
	}, client, c, l)
}
