package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// StateListener is told about circuit breaker transitions of a model.
type StateListener func(model string, from, to gobreaker.State)

// Guarded wraps a Provider with a rate limiter, a per-call timeout and a
// circuit breaker. Responses with the wrong shape count as failures so a
// misbehaving backend trips the breaker like an unreachable one.
type Guarded struct {
	inner   Provider
	cfg     Config
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Option customizes New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	listener   StateListener
	logger     Logger
}

// WithHTTPClient overrides the HTTP client of HTTP-based providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithStateListener registers a callback for breaker transitions.
func WithStateListener(l StateListener) Option {
	return func(o *options) { o.listener = l }
}

// WithLogger logs breaker transitions.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// New validates cfg, builds the backend for cfg.Kind and guards it.
func New(cfg Config, opts ...Option) (*Guarded, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var inner Provider
	switch cfg.Kind {
	case KindInference:
		inner = newInferenceProvider(cfg, o.httpClient)
	case KindOpenAI:
		inner = newOpenAIProvider(cfg, o.httpClient)
	case KindOllama:
		p, err := newOllamaProvider(cfg)
		if err != nil {
			return nil, err
		}
		inner = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}

	return Guard(inner, cfg, opts...), nil
}

// Guard wraps an arbitrary provider. Only the Timeout, RateLimit, Burst and
// Breaker fields of cfg are used.
func Guard(inner Provider, cfg Config, opts ...Option) *Guarded {
	cfg = cfg.withDefaults()
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	g := &Guarded{inner: inner, cfg: cfg}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}

	b := cfg.Breaker
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: b.MaxRequests,
		Interval:    b.Interval,
		Timeout:     b.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
		},
		// A cancelled caller says nothing about the backend's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if o.logger != nil {
				o.logger.Warn("embedding circuit breaker state changed", nil, map[string]interface{}{
					"model": name,
					"from":  from.String(),
					"to":    to.String(),
				})
			}
			if o.listener != nil {
				o.listener(name, from, to)
			}
		},
	})
	return g
}

func (g *Guarded) Name() string   { return g.inner.Name() }
func (g *Guarded) Dimension() int { return g.inner.Dimension() }

// State returns the breaker's current state.
func (g *Guarded) State() gobreaker.State { return g.breaker.State() }

// Embed waits for a rate limiter slot, then calls the backend through the breaker.
func (g *Guarded) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRateLimited, g.inner.Name(), err)
		}
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		vectors, err := g.inner.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if err := CheckVectors(texts, vectors, g.inner.Dimension()); err != nil {
			return nil, &ProviderError{Model: g.inner.Name(), Err: err}
		}
		return vectors, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, g.inner.Name(), err)
		}
		return nil, err
	}
	return res.([][]float32), nil
}

var _ Provider = (*Guarded)(nil)
