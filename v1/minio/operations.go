package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// Put stores data under key (after the configured prefix). Metadata is saved
// as user metadata on the object.
func (m *MinioClient) Put(ctx context.Context, key string, data []byte, metadata map[string]string) (err error) {
	start := time.Now()
	full := m.objectKey(key)
	defer func() {
		m.observeOperation("put", full, time.Since(start), err, int64(len(data)))
	}()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.OperationTimeout)
	defer cancel()

	_, err = m.client.PutObject(ctx, m.Bucket(), full, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  DefaultContentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("minio: put %s: %w", full, err)
	}
	return nil
}

// Get returns the object stored under key.
func (m *MinioClient) Get(ctx context.Context, key string) (data []byte, err error) {
	start := time.Now()
	full := m.objectKey(key)
	defer func() {
		m.observeOperation("get", full, time.Since(start), err, int64(len(data)))
	}()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.OperationTimeout)
	defer cancel()

	obj, err := m.client.GetObject(ctx, m.Bucket(), full, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %s: %w", full, err)
	}
	defer obj.Close()

	data, err = io.ReadAll(obj)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, full)
		}
		return nil, fmt.Errorf("minio: read %s: %w", full, err)
	}
	return data, nil
}

// List returns the keys under prefix, relative to the configured prefix.
func (m *MinioClient) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	full := m.objectKey(prefix)

	var keys []string
	var err error
	for obj := range m.client.ListObjects(ctx, m.Bucket(), minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if obj.Err != nil {
			err = obj.Err
			break
		}
		key := obj.Key
		if m.cfg.Prefix != "" {
			key = strings.TrimPrefix(strings.TrimPrefix(key, strings.TrimSuffix(m.cfg.Prefix, "/")), "/")
		}
		keys = append(keys, key)
	}
	m.observeOperation("list", full, time.Since(start), err, int64(len(keys)))
	if err != nil {
		return nil, fmt.Errorf("minio: list %s: %w", full, err)
	}
	return keys, nil
}
