package qdrant

import "time"

const (
	DefaultEndpoint   = "localhost"
	DefaultPort       = 6334
	DefaultCollection = "embeddings"
	DefaultTimeout    = 5 * time.Second

	// DefaultBatchSize is the number of points sent per upsert request.
	DefaultBatchSize = 200

	// DefaultScrollPage is the page size used when iterating points.
	DefaultScrollPage = 256
)

// Config holds connection settings for Qdrant's gRPC API.
type Config struct {
	Endpoint string `mapstructure:"endpoint"`
	Port     int    `mapstructure:"port"`
	ApiKey   string `mapstructure:"api_key"`
	UseTLS   bool   `mapstructure:"use_tls"`

	// Collection receives every vector record; tenants are separated by payload filters.
	Collection string `mapstructure:"collection"`

	// Timeout bounds each individual request issued by the client.
	Timeout time.Duration `mapstructure:"timeout"`

	CheckCompatibility bool `mapstructure:"check_compatibility"`
}

// DefaultConfig returns a Config pointing at a local Qdrant.
func DefaultConfig() Config {
	return Config{
		Endpoint:   DefaultEndpoint,
		Port:       DefaultPort,
		Collection: DefaultCollection,
		Timeout:    DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
