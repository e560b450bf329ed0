package embedding

import (
	"fmt"
	"time"
)

// Provider kinds accepted in Config.Kind.
const (
	KindInference = "inference"
	KindOpenAI    = "openai"
	KindOllama    = "ollama"
)

const (
	DefaultTimeout = 30 * time.Second

	DefaultBreakerMaxRequests  = 1
	DefaultBreakerInterval     = 30 * time.Second
	DefaultBreakerTimeout      = 60 * time.Second
	DefaultBreakerMinRequests  = 5
	DefaultBreakerFailureRatio = 0.5
)

// Config describes one registered model.
type Config struct {
	// Name is the registry key, e.g. "openai-text-embedding-3-small".
	Name string `mapstructure:"name"`

	// Aliases are additional registry keys resolving to the same client.
	Aliases []string `mapstructure:"aliases"`

	// Kind selects the backend: inference, openai or ollama.
	Kind string `mapstructure:"kind"`

	// Endpoint is the backend base URL. Optional for openai.
	Endpoint string `mapstructure:"endpoint"`

	APIKey string `mapstructure:"api_key"`

	// Model is the backend's own model identifier, e.g. "text-embedding-3-small".
	Model string `mapstructure:"model"`

	// Dimension is the length of every vector this model produces.
	Dimension int `mapstructure:"dimension"`

	// Timeout bounds one batched call.
	Timeout time.Duration `mapstructure:"timeout"`

	// RateLimit is the sustained number of calls per second; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`

	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the per-model circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`

	// Interval is the closed-state window after which counts reset.
	Interval time.Duration `mapstructure:"interval"`

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration `mapstructure:"timeout"`

	// The breaker opens once MinRequests calls were seen in the window and
	// the failure ratio reached FailureRatio.
	MinRequests  uint32  `mapstructure:"min_requests"`
	FailureRatio float64 `mapstructure:"failure_ratio"`
}

// Validate checks the fields required for every kind.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("embedding: model name is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedding: model %s: dimension must be positive", c.Name)
	}
	switch c.Kind {
	case KindInference, KindOllama:
		if c.Endpoint == "" {
			return fmt.Errorf("embedding: model %s: endpoint is required for %s", c.Name, c.Kind)
		}
	case KindOpenAI:
		if c.APIKey == "" && c.Endpoint == "" {
			return fmt.Errorf("embedding: model %s: api key is required for openai", c.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Model == "" {
		c.Model = c.Name
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	b := &c.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = DefaultBreakerMaxRequests
	}
	if b.Interval == 0 {
		b.Interval = DefaultBreakerInterval
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultBreakerTimeout
	}
	if b.MinRequests == 0 {
		b.MinRequests = DefaultBreakerMinRequests
	}
	if b.FailureRatio == 0 {
		b.FailureRatio = DefaultBreakerFailureRatio
	}
	return c
}
