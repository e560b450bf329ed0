package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/config"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/coordinator"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/registry"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/worker"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/kafka"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Logger: logger.Config{Level: "debug", ServiceName: "embedding-worker-test"},
		Kafka: kafka.Config{
			Brokers:       []string{"localhost:9092"},
			GroupID:       config.DefaultGroupID,
			ConsumerTopic: config.DefaultInboundTopic,
		},
		Topics: config.Topics{
			Inbound:    config.DefaultInboundTopic,
			Completion: config.DefaultCompletionTopic,
			DeadLetter: config.DefaultDeadLetterTopic,
			Alerts:     config.DefaultAlertTopic,
		},
		Worker: config.WorkerConfig{Concurrency: 2, ShutdownTimeout: time.Second},
		Retry:  config.RetryConfig{MaxAttempts: 3},
		Models: config.ModelsConfig{
			Default: "minilm",
			List: []embedding.Config{{
				Name:      "minilm",
				Kind:      embedding.KindInference,
				Endpoint:  "http://localhost:8080",
				Model:     "sentence-transformers/all-MiniLM-L6-v2",
				Dimension: 384,
			}},
		},
		Cache:       config.CacheConfig{Backend: config.CacheMemory, TTL: time.Minute},
		VectorStore: config.VectorStoreConfig{Backend: config.StoreMemory},
	}
}

func TestModule_ValidatesForEveryBackend(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"memory", func(*config.Config) {}},
		{"no cache", func(c *config.Config) { c.Cache.Backend = config.CacheNone }},
		{"redis and qdrant", func(c *config.Config) {
			c.Cache.Backend = config.CacheRedis
			c.Cache.LocalSize = 100
			c.VectorStore.Backend = config.StoreQdrant
		}},
		{"postgres", func(c *config.Config) { c.VectorStore.Backend = config.StorePostgres }},
		{"archive and rabbit alerts", func(c *config.Config) {
			c.DeadLetter.Archive = true
			c.Alerts.Rabbit = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)
			assert.NoError(t, fx.ValidateApp(Module(cfg)))
		})
	}
}

func TestHealthHandler(t *testing.T) {
	c := coordinator.New(coordinator.Config{}, nil, nil, nil, nil, nil)
	c.Handle(context.Background(), []byte("not json"), nil)

	rec := httptest.NewRecorder()
	HealthHandler(c.Counters()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, coordinator.Snapshot{Received: 1, Dropped: 1}, body.Counters)
}

func TestModelsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := embedding.NewMockProvider(ctrl)
	a.EXPECT().Name().Return("minilm").AnyTimes()
	a.EXPECT().Dimension().Return(384).AnyTimes()
	b := embedding.NewMockProvider(ctrl)
	b.EXPECT().Name().Return("ada").AnyTimes()
	b.EXPECT().Dimension().Return(1536).AnyTimes()

	reg, err := registry.New("minilm", registry.Entry{Provider: a}, registry.Entry{Provider: b})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ModelsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var models []registry.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Equal(t, []registry.ModelInfo{
		{Name: "ada", Dimension: 1536},
		{Name: "minilm", Dimension: 384, Default: true},
	}, models)
}

// idleSource yields nothing until ctx is cancelled.
type idleSource struct{ err error }

func (s idleSource) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan kafka.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan kafka.Message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		<-ctx.Done()
	}()
	return out, nil
}

type idleHandler struct{ counters coordinator.Counters }

func (h *idleHandler) Handle(context.Context, []byte, map[string]string) coordinator.Outcome {
	return coordinator.OutcomeCompleted
}

func (h *idleHandler) Counters() *coordinator.Counters { return &h.counters }

type recordingShutdowner struct{ calls atomic.Int32 }

func (s *recordingShutdowner) Shutdown(...fx.ShutdownOption) error {
	s.calls.Add(1)
	return nil
}

func TestRegisterWorkerLifecycle_StartStop(t *testing.T) {
	w, err := worker.New(worker.Config{Concurrency: 1, ReportInterval: -1}, idleSource{}, &idleHandler{}, nil)
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	shutdowner := &recordingShutdowner{}
	RegisterWorkerLifecycle(WorkerLifecycleParams{
		Lifecycle:  lc,
		Shutdowner: shutdowner,
		Worker:     w,
		Logger:     logger.Nop{},
	})

	lc.RequireStart()
	lc.RequireStop()
	assert.Zero(t, shutdowner.calls.Load())
}

func TestRegisterWorkerLifecycle_ShutsDownWhenWorkerFails(t *testing.T) {
	w, err := worker.New(worker.Config{Concurrency: 1, ReportInterval: -1}, idleSource{err: kafka.ErrNoConsumer}, &idleHandler{}, nil)
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	shutdowner := &recordingShutdowner{}
	RegisterWorkerLifecycle(WorkerLifecycleParams{
		Lifecycle:  lc,
		Shutdowner: shutdowner,
		Worker:     w,
		Logger:     logger.Nop{},
	})

	lc.RequireStart()
	require.Eventually(t, func() bool { return shutdowner.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	lc.RequireStop()
}

type fakeMigrator struct {
	err   error
	calls int
}

func (m *fakeMigrator) Migrate(context.Context) error {
	m.calls++
	return m.err
}

func TestMigrateOnStart_LogsThroughInjectedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := &fakeMigrator{}

	lc := fxtest.NewLifecycle(t)
	migrateOnStart(lc, m, logger.NewFromZap(zap.New(core), false))
	lc.RequireStart()
	lc.RequireStop()

	assert.Equal(t, 1, m.calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "migrating embedding records table", logs.All()[0].Message)
	assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
}

func TestMigrateOnStart_FailureAbortsStart(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	boom := errors.New("relation locked")
	m := &fakeMigrator{err: boom}

	lc := fxtest.NewLifecycle(t)
	migrateOnStart(lc, m, logger.NewFromZap(zap.New(core), false))

	err := lc.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}
