package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// KafkaClient publishes to any topic and, optionally, consumes one topic as part of a group.
type KafkaClient struct {
	cfg Config

	observer observability.Observer

	// writer has no fixed topic; every message names its own.
	writer *kafka.Writer

	// reader is nil for producer-only clients.
	reader *kafka.Reader

	mu sync.RWMutex

	// shutdownSignal is closed when the client is being shut down.
	shutdownSignal chan struct{}

	closeShutdownOnce sync.Once
}

// NewClient validates cfg, applies defaults and builds the producer and, when
// ConsumerTopic is set, the consumer.
//
// Example:
//
//	client, err := kafka.NewClient(kafka.Config{
//		Brokers:       []string{"localhost:9092"},
//		ConsumerTopic: "embedding-generation",
//		GroupID:       "embedding-worker",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.GracefulShutdown()
func NewClient(cfg Config) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.ConsumerTopic != "" && cfg.GroupID == "" {
		return nil, ErrMissingGroupID
	}
	cfg = cfg.withDefaults()

	var tlsConfig *tls.Config
	var err error
	if cfg.TLS.Enabled {
		tlsConfig, err = createTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	var mechanism sasl.Mechanism
	if cfg.SASL.Enabled {
		mechanism, err = createSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
	}

	k := &KafkaClient{
		cfg:            cfg,
		shutdownSignal: make(chan struct{}),
	}

	k.writer = createWriter(cfg, tlsConfig, mechanism)
	log.Println("INFO: Kafka producer initialized")

	if cfg.ConsumerTopic != "" {
		k.reader = createReader(cfg, tlsConfig, mechanism)
		log.Printf("INFO: Kafka consumer initialized for topic %s (group %s)", cfg.ConsumerTopic, cfg.GroupID)
	}

	return k, nil
}

// WithObserver attaches an observer notified of every produce, consume and commit.
func (k *KafkaClient) WithObserver(observer observability.Observer) *KafkaClient {
	k.observer = observer
	return k
}

// GracefulShutdown closes the producer and the consumer. Safe to call more than once.
func (k *KafkaClient) GracefulShutdown() error {
	var firstErr error
	k.closeShutdownOnce.Do(func() {
		close(k.shutdownSignal)

		k.mu.Lock()
		defer k.mu.Unlock()

		if k.reader != nil {
			if err := k.reader.Close(); err != nil {
				firstErr = fmt.Errorf("failed to close reader: %w", err)
			}
		}
		if k.writer != nil {
			if err := k.writer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close writer: %w", err)
			}
		}
		log.Println("INFO: Kafka client shut down")
	})
	return firstErr
}

func (k *KafkaClient) isClosed() bool {
	select {
	case <-k.shutdownSignal:
		return true
	default:
		return false
	}
}

// createErrorLogger routes kafka-go's internal errors to the configured logger.
func createErrorLogger(cfg Config) kafka.LoggerFunc {
	if cfg.Logger != nil {
		return func(msg string, args ...interface{}) {
			cfg.Logger.Error("Kafka internal error", nil, map[string]interface{}{
				"error": fmt.Sprintf(msg, args...),
			})
		}
	}
	return func(msg string, args ...interface{}) {
		log.Printf("KAFKA ERROR: "+msg, args...)
	}
}

// createWriter builds a topic-less writer. The Hash balancer keeps messages with
// the same key on the same partition.
func createWriter(cfg Config, tlsConfig *tls.Config, mechanism sasl.Mechanism) *kafka.Writer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           cfg.RequiredAcks,
		AllowAutoTopicCreation: false,
		ErrorLogger:            createErrorLogger(cfg),
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
			TLS:      tlsConfig,
			SASL:     mechanism,
		},
	}

	switch cfg.CompressionCodec {
	case "gzip":
		w.Compression = compress.Gzip
	case "snappy":
		w.Compression = compress.Snappy
	case "lz4":
		w.Compression = compress.Lz4
	case "zstd":
		w.Compression = compress.Zstd
	}

	return w
}

// createReader builds a group reader with auto-commit disabled; offsets are
// committed per message once it has been handled.
func createReader(cfg Config, tlsConfig *tls.Config, mechanism sasl.Mechanism) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.ConsumerTopic,
		GroupID:        cfg.GroupID,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		StartOffset:    cfg.StartOffset,
		CommitInterval: 0,
		ErrorLogger:    createErrorLogger(cfg),
		Dialer: &kafka.Dialer{
			ClientID:      cfg.ClientID,
			TLS:           tlsConfig,
			SASLMechanism: mechanism,
			DualStack:     true,
		},
	})
}

func createTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func createSASLMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
