package redis

import "time"

const (
	DefaultHost = "localhost"
	DefaultPort = 6379

	DefaultMaxRetries      = 3
	DefaultMinRetryBackoff = 8 * time.Millisecond
	DefaultMaxRetryBackoff = 512 * time.Millisecond

	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute

	// DefaultScanCount is the COUNT hint used when iterating keys.
	DefaultScanCount = 500
)

// Logger is the subset of the logger package used by the client.
type Logger interface {
	Error(msg string, err error, fields ...map[string]interface{})
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
}

// Config holds the settings for a single-node Redis connection.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// PoolSize defaults to 10 connections per CPU inside go-redis.
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`

	MaxConnAge  time.Duration `mapstructure:"max_conn_age"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	TLS TLSConfig `mapstructure:"tls"`

	Logger Logger `mapstructure:"-"`
}

// TLSConfig enables TLS for the connection.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACertPath         string `mapstructure:"ca_cert_path"`
	ClientCertPath     string `mapstructure:"client_cert_path"`
	ClientKeyPath      string `mapstructure:"client_key_path"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	ServerName         string `mapstructure:"server_name"`
}
