package rabbit

import (
	"context"
	"time"
)

const (
	DefaultPort           = 5672
	DefaultExchangeType   = "topic"
	DefaultContentType    = "application/json"
	DefaultHeartbeat      = 2 * time.Second
	DefaultReconnectDelay = time.Second
	DefaultConfirmTimeout = 5 * time.Second
)

// Config is the RabbitMQ publisher configuration.
type Config struct {
	// Connection contains the settings needed to reach the broker.
	Connection Connection `mapstructure:"connection"`

	// Exchange is where published messages go. It is declared durable on connect.
	Exchange Exchange `mapstructure:"exchange"`

	// ConfirmTimeout bounds the wait for a publisher confirm.
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`

	// ReconnectDelay is the pause between reconnection attempts.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// Connection holds broker address, credentials and TLS settings.
type Connection struct {
	Host     string `mapstructure:"host"`
	Port     uint   `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`

	// IsSSLEnabled switches to amqps.
	IsSSLEnabled bool `mapstructure:"ssl_enabled"`

	// UseCert enables client certificate authentication. Only used with IsSSLEnabled.
	UseCert        bool   `mapstructure:"use_cert"`
	CACertPath     string `mapstructure:"ca_cert_path"`
	ClientCertPath string `mapstructure:"client_cert_path"`
	ClientKeyPath  string `mapstructure:"client_key_path"`
	ServerName     string `mapstructure:"server_name"`
}

// Exchange describes the target exchange.
type Exchange struct {
	Name string `mapstructure:"name"`

	// Type is one of direct, fanout, topic or headers.
	Type string `mapstructure:"type"`

	// RoutingKey is used when Publish is called with an empty key.
	RoutingKey string `mapstructure:"routing_key"`

	ContentType string `mapstructure:"content_type"`
}

func (c Config) withDefaults() Config {
	if c.Connection.Port == 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Exchange.Type == "" {
		c.Exchange.Type = DefaultExchangeType
	}
	if c.Exchange.ContentType == "" {
		c.Exchange.ContentType = DefaultContentType
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	return c
}

// Logger is the subset of the logger package used by the client.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
