package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// DefaultMinBytes is the minimum number of bytes the broker returns per fetch.
	DefaultMinBytes = 1

	// DefaultMaxBytes caps a single fetch at 10MB.
	DefaultMaxBytes = 10e6

	// DefaultMaxWait is how long a fetch waits for MinBytes to accumulate.
	DefaultMaxWait = 500 * time.Millisecond

	// DefaultStartOffset makes a new consumer group begin at the oldest retained message.
	DefaultStartOffset = kafka.FirstOffset

	// DefaultRequiredAcks waits for all in-sync replicas.
	DefaultRequiredAcks = kafka.RequireAll

	DefaultMaxAttempts = 3

	DefaultWriteTimeout = 10 * time.Second

	DefaultBatchTimeout = 10 * time.Millisecond
)

// Logger is the subset of the logger package the client uses for broker errors.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Config defines the connection and behaviour of a KafkaClient.
//
// A client always owns a producer. It owns a consumer as well when
// ConsumerTopic is set; ConsumerTopic then requires GroupID.
type Config struct {
	Brokers []string `mapstructure:"brokers"`

	// ClientID identifies this process to the brokers.
	ClientID string `mapstructure:"client_id"`

	// ConsumerTopic is the topic read by Consume. Empty means producer-only.
	ConsumerTopic string `mapstructure:"consumer_topic"`

	// GroupID is the consumer group. Offsets are committed explicitly per message.
	GroupID string `mapstructure:"group_id"`

	MinBytes    int           `mapstructure:"min_bytes"`
	MaxBytes    int           `mapstructure:"max_bytes"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	StartOffset int64         `mapstructure:"start_offset"`

	RequiredAcks kafka.RequiredAcks `mapstructure:"required_acks"`
	MaxAttempts  int                `mapstructure:"max_attempts"`
	WriteTimeout time.Duration      `mapstructure:"write_timeout"`
	BatchTimeout time.Duration      `mapstructure:"batch_timeout"`

	// CompressionCodec is one of gzip, snappy, lz4, zstd. Empty disables compression.
	CompressionCodec string `mapstructure:"compression_codec"`

	TLS  TLSConfig  `mapstructure:"tls"`
	SASL SASLConfig `mapstructure:"sasl"`

	// Logger receives broker-level errors from kafka-go. Falls back to the standard log package.
	Logger Logger `mapstructure:"-"`
}

// TLSConfig enables TLS towards the brokers.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACertPath         string `mapstructure:"ca_cert_path"`
	ClientCertPath     string `mapstructure:"client_cert_path"`
	ClientKeyPath      string `mapstructure:"client_key_path"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// SASLConfig enables SASL authentication. Mechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// withDefaults returns a copy of cfg with zero values replaced by the Default* constants.
func (cfg Config) withDefaults() Config {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.StartOffset == 0 {
		cfg.StartOffset = DefaultStartOffset
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = DefaultRequiredAcks
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	return cfg
}
