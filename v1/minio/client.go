package minio

import (
	"context"
	"fmt"
	"log"
	"path"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient stores objects in one bucket under a fixed key prefix.
type MinioClient struct {
	client   *minio.Client
	cfg      Config
	logger   Logger
	observer observability.Observer
}

// NewClient connects to the endpoint and makes sure the bucket exists,
// creating it when AccessBucketCreation is set.
func NewClient(cfg Config) (*MinioClient, error) {
	cfg = cfg.withDefaults()
	if cfg.Connection.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is empty", ErrConnectionFailed)
	}
	if cfg.Connection.BucketName == "" {
		return nil, fmt.Errorf("minio: bucket name is empty")
	}

	api, err := minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	m := &MinioClient{client: api, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := m.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	log.Printf("INFO: Connected to MinIO at %s, bucket %s", cfg.Connection.Endpoint, cfg.Connection.BucketName)
	return m, nil
}

// WithLogger attaches a logger.
func (m *MinioClient) WithLogger(l Logger) *MinioClient {
	m.logger = l
	return m
}

// WithObserver attaches an observer notified after every storage call.
func (m *MinioClient) WithObserver(o observability.Observer) *MinioClient {
	m.observer = o
	return m
}

// Bucket returns the configured bucket name.
func (m *MinioClient) Bucket() string { return m.cfg.Connection.BucketName }

// HealthCheck verifies the bucket is reachable.
func (m *MinioClient) HealthCheck(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.Bucket())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if !ok {
		return ErrBucketNotFound
	}
	return nil
}

func (m *MinioClient) ensureBucketExists(ctx context.Context) error {
	bucket := m.Bucket()
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("%w: checking bucket %s: %v", ErrConnectionFailed, bucket, err)
	}
	if exists {
		return nil
	}
	if !m.cfg.Connection.AccessBucketCreation {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}

	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.cfg.Connection.Region}); err != nil {
		return fmt.Errorf("minio: creating bucket %s: %w", bucket, err)
	}
	m.logInfo(ctx, "Created bucket", map[string]interface{}{"bucket": bucket})
	return nil
}

// objectKey joins the configured prefix and key.
func (m *MinioClient) objectKey(key string) string {
	if m.cfg.Prefix == "" {
		return key
	}
	return path.Join(m.cfg.Prefix, key)
}

func (m *MinioClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}
