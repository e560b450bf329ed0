package minio

import (
	"context"
	"time"
)

const (
	DefaultRegion           = "us-east-1"
	DefaultOperationTimeout = 10 * time.Second
	DefaultContentType      = "application/json"
)

// Config is the object storage configuration.
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection"`

	// Prefix is prepended to every object key, e.g. "dead-letters/".
	Prefix string `mapstructure:"prefix"`

	// OperationTimeout bounds each storage call.
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// ConnectionConfig holds the endpoint, credentials and bucket.
type ConnectionConfig struct {
	// Endpoint is host:port without a scheme, e.g. "localhost:9000".
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`

	// AccessBucketCreation allows NewClient to create a missing bucket.
	AccessBucketCreation bool `mapstructure:"access_bucket_creation"`
}

func (c Config) withDefaults() Config {
	if c.Connection.Region == "" {
		c.Connection.Region = DefaultRegion
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = DefaultOperationTimeout
	}
	return c
}

// Logger is the subset of the logger package used by the client.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
