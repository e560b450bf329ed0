package minio

import (
	"errors"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrConnectionFailed is returned when the endpoint is missing or unreachable.
	ErrConnectionFailed = errors.New("minio: connection failed")

	// ErrBucketNotFound is returned when the bucket is missing and may not be created.
	ErrBucketNotFound = errors.New("minio: bucket not found")

	// ErrObjectNotFound is returned by Get for a missing key.
	ErrObjectNotFound = errors.New("minio: object not found")
)

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
