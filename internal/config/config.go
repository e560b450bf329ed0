// Package config loads the worker configuration from an optional YAML file,
// a .env file and EMBEDDING_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/vectorstore"

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

const (
	EnvPrefix      = "EMBEDDING"
	ConfigFileName = "embedding-worker"

	DefaultInboundTopic    = "embedding-generation"
	DefaultCompletionTopic = "embedding-complete"
	DefaultDeadLetterTopic = "embedding-dlq"
	DefaultAlertTopic      = "failure-alerts"
	DefaultGroupID         = "embedding-service"

	DefaultModel         = "openai-text-embedding-3-small"
	DefaultFallbackModel = "sentence-transformers-all-minilm-l6-v2"

	DefaultConcurrency     = 16
	DefaultShutdownTimeout = 30 * time.Second

	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	DefaultMultiplier      = 2.0

	DefaultCacheTTL       = time.Hour
	DefaultCacheKeyPrefix = "embcache"
	DefaultCacheLocalSize = 10000
	DefaultCacheTimeout   = 2 * time.Second

	DefaultStoreTimeout   = 10 * time.Second
	DefaultPublishTimeout = 10 * time.Second
)

// Cache backends.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Vector store backends.
const (
	StoreQdrant   = "qdrant"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete worker configuration.
type Config struct {
	Logger      logger.Config     `mapstructure:"logger"`
	Kafka       kafka.Config      `mapstructure:"kafka"`
	Topics      Topics            `mapstructure:"topics"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Models      ModelsConfig      `mapstructure:"models"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Redis       redis.Config      `mapstructure:"redis"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Qdrant      qdrant.Config     `mapstructure:"qdrant"`
	Postgres    postgres.Config   `mapstructure:"postgres"`
	DeadLetter  DeadLetterConfig  `mapstructure:"dead_letter"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Metrics     metrics.Config    `mapstructure:"metrics"`
	Tracer      tracer.Config     `mapstructure:"tracer"`
}

// Topics names the Kafka topics the worker reads and writes.
type Topics struct {
	Inbound    string `mapstructure:"inbound"`
	Completion string `mapstructure:"completion"`
	DeadLetter string `mapstructure:"dead_letter"`
	Alerts     string `mapstructure:"alerts"`
}

type WorkerConfig struct {
	// Concurrency is the number of messages processed at the same time.
	Concurrency int `mapstructure:"concurrency"`

	// ShutdownTimeout bounds how long in-flight messages may run after stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// PublishTimeout bounds completion, dead-letter and alert publishes.
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// RetryConfig is the per-message retry budget. MaxAttempts counts the first try.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// ModelsConfig lists the embedding models and names the default.
type ModelsConfig struct {
	Default string             `mapstructure:"default"`
	List    []embedding.Config `mapstructure:"list"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`

	// LocalSize is the capacity of the in-process LRU in front of the backend; 0 disables it.
	LocalSize int           `mapstructure:"local_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type VectorStoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DeadLetterConfig optionally archives dead letters to object storage in
// addition to the dead-letter topic.
type DeadLetterConfig struct {
	Archive bool         `mapstructure:"archive"`
	Minio   minio.Config `mapstructure:"minio"`
}

// AlertsConfig optionally mirrors failure alerts to RabbitMQ.
type AlertsConfig struct {
	Rabbit        bool          `mapstructure:"rabbit"`
	RabbitOptions rabbit.Config `mapstructure:"rabbit_options"`
}

// Load reads .env (if present), then path (or embedding-worker.yaml from the
// usual locations when path is empty), then EMBEDDING_* variables. Keys use
// "_" for nesting, e.g. EMBEDDING_KAFKA_GROUP_ID.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/embedding-worker")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.enable_tracing", true)
	v.SetDefault("logger.service_name", logger.DefaultServiceName)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", DefaultGroupID)
	v.SetDefault("kafka.client_id", logger.DefaultServiceName)
	v.SetDefault("kafka.consumer_topic", "")

	v.SetDefault("topics.inbound", DefaultInboundTopic)
	v.SetDefault("topics.completion", DefaultCompletionTopic)
	v.SetDefault("topics.dead_letter", DefaultDeadLetterTopic)
	v.SetDefault("topics.alerts", DefaultAlertTopic)

	v.SetDefault("worker.concurrency", DefaultConcurrency)
	v.SetDefault("worker.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("worker.publish_timeout", DefaultPublishTimeout)

	v.SetDefault("retry.max_attempts", DefaultMaxAttempts)
	v.SetDefault("retry.initial_interval", DefaultInitialInterval)
	v.SetDefault("retry.max_interval", DefaultMaxInterval)
	v.SetDefault("retry.multiplier", DefaultMultiplier)

	v.SetDefault("models.default", DefaultModel)
	v.SetDefault("models.list", []map[string]any{
		{
			"name":      DefaultModel,
			"kind":      embedding.KindOpenAI,
			"model":     "text-embedding-3-small",
			"dimension": 1536,
		},
		{
			"name":      DefaultFallbackModel,
			"kind":      embedding.KindInference,
			"endpoint":  "http://localhost:8080",
			"model":     "sentence-transformers/all-MiniLM-L6-v2",
			"dimension": 384,
		},
	})

	v.SetDefault("cache.backend", CacheRedis)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.key_prefix", DefaultCacheKeyPrefix)
	v.SetDefault("cache.local_size", DefaultCacheLocalSize)
	v.SetDefault("cache.timeout", DefaultCacheTimeout)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("vector_store.backend", StoreQdrant)
	v.SetDefault("vector_store.timeout", DefaultStoreTimeout)

	v.SetDefault("qdrant.endpoint", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.collection", "embeddings")

	v.SetDefault("postgres.connection.host", "localhost")
	v.SetDefault("postgres.connection.port", "5432")
	v.SetDefault("postgres.connection.user", "postgres")
	v.SetDefault("postgres.connection.password", "")
	v.SetDefault("postgres.connection.db_name", "embeddings")
	v.SetDefault("postgres.connection.ssl_mode", "disable")

	v.SetDefault("dead_letter.archive", false)
	v.SetDefault("dead_letter.minio.connection.endpoint", "localhost:9000")
	v.SetDefault("dead_letter.minio.connection.bucket_name", "embedding-dlq")
	v.SetDefault("dead_letter.minio.connection.access_key_id", "")
	v.SetDefault("dead_letter.minio.connection.secret_access_key", "")
	v.SetDefault("dead_letter.minio.prefix", "dead-letters")

	v.SetDefault("alerts.rabbit", false)
	v.SetDefault("alerts.rabbit_options.connection.host", "localhost")
	v.SetDefault("alerts.rabbit_options.connection.user", "guest")
	v.SetDefault("alerts.rabbit_options.connection.password", "guest")
	v.SetDefault("alerts.rabbit_options.exchange.name", "alerts")
	v.SetDefault("alerts.rabbit_options.exchange.routing_key", DefaultAlertTopic)

	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("metrics.service_name", logger.DefaultServiceName)

	v.SetDefault("tracer.service_name", logger.DefaultServiceName)
	v.SetDefault("tracer.app_env", "development")
	v.SetDefault("tracer.enable_export", false)
}

// applyDerived fills values that depend on other settings.
func (c *Config) applyDerived() {
	if c.Kafka.ConsumerTopic == "" {
		c.Kafka.ConsumerTopic = c.Topics.Inbound
	}
	for i := range c.Models.List {
		m := &c.Models.List[i]
		if m.Kind == embedding.KindOpenAI && m.APIKey == "" {
			m.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Topics.Inbound == "" || c.Topics.Completion == "" || c.Topics.DeadLetter == "" || c.Topics.Alerts == "" {
		errs = append(errs, errors.New("all topics must be set"))
	}

	if c.Models.Default == "" {
		errs = append(errs, errors.New("models.default is required"))
	}
	known := map[string]bool{}
	names := make([]string, 0, len(c.Models.List))
	for _, m := range c.Models.List {
		names = append(names, m.Name)
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
		known[m.Name] = true
		for _, a := range m.Aliases {
			known[a] = true
		}
	}
	if c.Models.Default != "" && !known[c.Models.Default] {
		errs = append(errs, fmt.Errorf("default model %q is not in models.list", c.Models.Default))
	}
	if err := vectorstore.CheckModelNames(names); err != nil {
		errs = append(errs, err)
	}

	switch c.Cache.Backend {
	case CacheRedis, CacheMemory, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	switch c.VectorStore.Backend {
	case StoreQdrant, StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector store backend %q", c.VectorStore.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
