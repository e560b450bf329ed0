package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/vectorstore"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultInboundTopic, cfg.Topics.Inbound)
	assert.Equal(t, DefaultInboundTopic, cfg.Kafka.ConsumerTopic)
	assert.Equal(t, DefaultGroupID, cfg.Kafka.GroupID)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, StoreQdrant, cfg.VectorStore.Backend)

	require.Len(t, cfg.Models.List, 2)
	assert.Equal(t, DefaultModel, cfg.Models.Default)
	assert.Equal(t, "sk-test", cfg.Models.List[0].APIKey)
	assert.Equal(t, 384, cfg.Models.List[1].Dimension)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retry:
  max_attempts: 5
  initial_interval: 100ms
models:
  default: local
  list:
    - name: local
      aliases: [minilm]
      kind: inference
      endpoint: http://inference:8080
      dimension: 384
      rate_limit: 20
      breaker:
        min_requests: 10
cache:
  backend: memory
vector_store:
  backend: postgres
`), 0o600))

	t.Setenv("EMBEDDING_KAFKA_GROUP_ID", "from-env")
	t.Setenv("EMBEDDING_WORKER_CONCURRENCY", "4")
	t.Setenv("EMBEDDING_TOPICS_COMPLETION", "done")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, "from-env", cfg.Kafka.GroupID)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, "done", cfg.Topics.Completion)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, StorePostgres, cfg.VectorStore.Backend)

	require.Len(t, cfg.Models.List, 1)
	m := cfg.Models.List[0]
	assert.Equal(t, []string{"minilm"}, m.Aliases)
	assert.Equal(t, 20.0, m.RateLimit)
	assert.EqualValues(t, 10, m.Breaker.MinRequests)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		Topics: Topics{Inbound: "in", Completion: "out", DeadLetter: "dlq", Alerts: "alerts"},
		Worker: WorkerConfig{Concurrency: 1},
		Retry:  RetryConfig{MaxAttempts: 3},
		Models: ModelsConfig{
			Default: "alias",
			List: []embedding.Config{{
				Name: "m", Aliases: []string{"alias"}, Kind: embedding.KindInference,
				Endpoint: "http://x", Dimension: 4,
			}},
		},
		Cache:       CacheConfig{Backend: CacheNone},
		VectorStore: VectorStoreConfig{Backend: StoreMemory},
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retry budget", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"unknown default", func(c *Config) { c.Models.Default = "nope" }},
		{"missing default", func(c *Config) { c.Models.Default = "" }},
		{"bad provider kind", func(c *Config) { c.Models.List[0].Kind = "grpc" }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"bad store backend", func(c *Config) { c.VectorStore.Backend = "milvus" }},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"missing topic", func(c *Config) { c.Topics.Alerts = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg = validConfig()
	other := cfg.Models.List[0]
	other.Name, other.Aliases = "a.b", nil
	cfg.Models.List[0].Name = "a_b"
	cfg.Models.Default = "a_b"
	cfg.Models.List = append(cfg.Models.List, other)
	assert.ErrorIs(t, cfg.Validate(), vectorstore.ErrCollectionCollision)
}
