package minio

import (
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
)

// observeOperation reports a storage call. Resource is the bucket, SubResource the object key.
func (m *MinioClient) observeOperation(operation, key string, duration time.Duration, err error, size int64) {
	if m == nil || m.observer == nil {
		return
	}
	m.observer.ObserveOperation(observability.OperationContext{
		Component:   "minio",
		Operation:   operation,
		Resource:    m.cfg.Connection.BucketName,
		SubResource: key,
		Duration:    duration,
		Error:       err,
		Size:        size,
	})
}
