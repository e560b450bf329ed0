// Package worker feeds consumed Kafka messages to the coordinator on a
// bounded goroutine pool and commits offsets once messages are handled.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/coordinator"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/kafka"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
)

const (
	DefaultConcurrency     = 16
	DefaultShutdownTimeout = 30 * time.Second
	DefaultReportInterval  = time.Minute
)

var ErrShutdownTimeout = errors.New("worker: in-flight messages did not finish before the shutdown timeout")

// Source yields messages until ctx is cancelled. wg tracks its goroutine.
type Source interface {
	Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan kafka.Message, error)
}

// Handler processes one message body.
type Handler interface {
	Handle(ctx context.Context, body []byte, headers map[string]string) coordinator.Outcome
	Counters() *coordinator.Counters
}

type Config struct {
	Concurrency     int
	ShutdownTimeout time.Duration

	// ReportInterval is how often pipeline totals are logged; negative disables it.
	ReportInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = DefaultReportInterval
	}
	return c
}

type Worker struct {
	cfg      Config
	source   Source
	handler  Handler
	logger   logger.Logger
	pool     *ants.Pool
	offsets  *offsetTracker
	inflight sync.WaitGroup
}

// New creates the pool. A panic inside a handler is re-raised on the pool
// goroutine and takes the process down; it is never turned into a retry.
func New(cfg Config, source Source, handler Handler, log logger.Logger) (*Worker, error) {
	return newWorker(cfg, source, handler, log, func(p interface{}) { panic(p) })
}

func newWorker(cfg Config, source Source, handler Handler, log logger.Logger, onPanic func(interface{})) (*Worker, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	pool, err := ants.NewPool(cfg.Concurrency, ants.WithPanicHandler(onPanic))
	if err != nil {
		return nil, fmt.Errorf("worker: creating pool: %w", err)
	}
	return &Worker{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  log,
		pool:    pool,
		offsets: newOffsetTracker(),
	}, nil
}

// Run consumes until ctx is cancelled, then waits up to ShutdownTimeout for
// in-flight messages. Messages still running after that are not committed
// and will be redelivered.
func (w *Worker) Run(ctx context.Context) error {
	var consumers sync.WaitGroup
	messages, err := w.source.Consume(ctx, &consumers)
	if err != nil {
		return fmt.Errorf("worker: starting consumer: %w", err)
	}

	w.logger.Info("embedding worker started", nil, map[string]interface{}{
		"concurrency": w.cfg.Concurrency,
	})

	g, gctx := errgroup.WithContext(ctx)
	reportCtx, stopReport := context.WithCancel(gctx)
	g.Go(func() error {
		defer stopReport()
		return w.dispatch(ctx, messages)
	})
	if w.cfg.ReportInterval > 0 {
		g.Go(func() error {
			w.report(reportCtx)
			return nil
		})
	}
	runErr := g.Wait()
	consumers.Wait()

	if err := w.drain(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	w.pool.Release()

	w.logger.Info("embedding worker stopped", runErr, w.stats())
	return runErr
}

// dispatch hands messages to the pool. Submit blocks while every worker is
// busy, which stops the consumer from fetching ahead.
func (w *Worker) dispatch(ctx context.Context, messages <-chan kafka.Message) error {
	for msg := range messages {
		p := w.offsets.track(msg)
		w.inflight.Add(1)
		err := w.pool.Submit(func() {
			defer w.inflight.Done()
			w.process(ctx, p)
		})
		if err != nil {
			w.inflight.Done()
			return fmt.Errorf("worker: submitting message: %w", err)
		}
	}
	return nil
}

func (w *Worker) process(ctx context.Context, p *pending) {
	msg := p.msg
	outcome := w.handler.Handle(ctx, msg.Body(), msg.Header())

	last, ok := w.offsets.complete(p)
	if !ok {
		return
	}
	if err := last.CommitMsg(); err != nil {
		w.logger.Error("failed to commit offset", err, map[string]interface{}{
			"topic":     last.Topic(),
			"partition": last.Partition(),
			"offset":    last.Offset(),
			"outcome":   string(outcome),
		})
	}
}

func (w *Worker) drain() error {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownTimeout):
		w.logger.Warn("shutdown timeout reached with messages in flight", nil, map[string]interface{}{
			"running": w.pool.Running(),
		})
		return ErrShutdownTimeout
	}
}

func (w *Worker) report(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logger.Info("pipeline totals", nil, w.stats())
		}
	}
}

func (w *Worker) stats() map[string]interface{} {
	s := w.handler.Counters().Snapshot()
	return map[string]interface{}{
		"received":    s.Received,
		"processed":   s.Processed,
		"failed":      s.Failed,
		"dropped":     s.Dropped,
		"running":     w.pool.Running(),
		"uncommitted": w.offsets.outstanding(),
	}
}
