package rabbit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitClient publishes messages to a single exchange with publisher confirms
// and reconnects when the broker drops the connection.
type RabbitClient struct {
	cfg Config

	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex

	logger   Logger
	observer observability.Observer

	shutdownSignal    chan struct{}
	closeShutdownOnce sync.Once
}

// NewClient connects, opens a confirm-mode channel and declares the exchange.
func NewClient(cfg Config) (*RabbitClient, error) {
	cfg = cfg.withDefaults()

	conn, err := newConnection(cfg)
	if err != nil {
		log.Printf("ERROR: error in connecting to rabbit: %v", err)
		return nil, err
	}

	ch, err := openChannel(conn, cfg)
	if err != nil {
		_ = conn.Close()
		log.Printf("ERROR: error in declaring channel: %v", err)
		return nil, err
	}

	return &RabbitClient{
		cfg:            cfg,
		conn:           conn,
		channel:        ch,
		shutdownSignal: make(chan struct{}),
	}, nil
}

// WithLogger attaches a logger for reconnection and shutdown events.
func (rb *RabbitClient) WithLogger(l Logger) *RabbitClient {
	rb.logger = l
	return rb
}

// WithObserver attaches an observer notified after each publish.
func (rb *RabbitClient) WithObserver(o observability.Observer) *RabbitClient {
	rb.observer = o
	return rb
}

func openChannel(conn *amqp.Connection, cfg Config) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if cfg.Exchange.Name == "" {
		return ch, nil
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange.Name,
		cfg.Exchange.Type,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange.Name, TranslateError(err))
	}
	return ch, nil
}

// RetryConnection watches the connection and re-establishes it until
// GracefulShutdown is called. It blocks and is meant to run in a goroutine.
func (rb *RabbitClient) RetryConnection() {
	ctx := context.Background()
	for {
		rb.mu.RLock()
		conn := rb.conn
		rb.mu.RUnlock()

		errChan := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-rb.shutdownSignal:
			return
		case err := <-errChan:
			rb.logWarn(ctx, "RabbitMQ connection closed, reconnecting", err, nil)
		}

		for {
			select {
			case <-rb.shutdownSignal:
				return
			case <-time.After(rb.cfg.ReconnectDelay):
			}

			newConn, err := newConnection(rb.cfg)
			if err != nil {
				rb.logError(ctx, "RabbitMQ reconnection failed", err, nil)
				continue
			}
			ch, err := openChannel(newConn, rb.cfg)
			if err != nil {
				_ = newConn.Close()
				rb.logError(ctx, "Failed to re-establish RabbitMQ channel", err, nil)
				continue
			}

			rb.mu.Lock()
			rb.conn = newConn
			rb.channel = ch
			rb.mu.Unlock()

			rb.logInfo(ctx, "Reconnected to RabbitMQ", nil)
			break
		}
	}
}

// GracefulShutdown stops the reconnect loop and closes the channel and
// connection. Safe to call more than once.
func (rb *RabbitClient) GracefulShutdown() {
	rb.closeShutdownOnce.Do(func() {
		close(rb.shutdownSignal)

		rb.mu.Lock()
		defer rb.mu.Unlock()

		ctx := context.Background()
		if rb.channel != nil {
			if err := rb.channel.Close(); err != nil {
				rb.logWarn(ctx, "Failed to close rabbit channel", err, nil)
			}
		}
		if rb.conn != nil && !rb.conn.IsClosed() {
			if err := rb.conn.Close(); err != nil {
				rb.logWarn(ctx, "Failed to close rabbit connection", err, nil)
			}
		}
		rb.logInfo(ctx, "RabbitMQ client shut down", nil)
	})
}

func (rb *RabbitClient) closed() bool {
	select {
	case <-rb.shutdownSignal:
		return true
	default:
		return false
	}
}

func connectionURL(c Connection) string {
	scheme := "amqp"
	if c.IsSSLEnabled {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	if c.VHost != "" {
		u.Path = "/" + c.VHost
	}
	return u.String()
}

func newConnection(cfg Config) (*amqp.Connection, error) {
	amqpCfg := amqp.Config{Heartbeat: DefaultHeartbeat}

	if cfg.Connection.IsSSLEnabled {
		tlsCfg, err := tlsConfig(cfg.Connection)
		if err != nil {
			return nil, err
		}
		amqpCfg.TLSClientConfig = tlsCfg
	}

	conn, err := amqp.DialConfig(connectionURL(cfg.Connection), amqpCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	log.Println("INFO: Connected to Rabbit")
	return conn, nil
}

func tlsConfig(c Connection) (*tls.Config, error) {
	cfg := &tls.Config{ServerName: c.ServerName}

	if c.CACertPath != "" {
		caCert, err := os.ReadFile(c.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caCert)
		cfg.RootCAs = pool
	}

	if c.UseCert {
		cert, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func (rb *RabbitClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (rb *RabbitClient) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (rb *RabbitClient) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
