package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// Nil is returned when a key does not exist. It is go-redis' own sentinel so
// errors.Is works on values returned straight from the driver too.
var Nil = redis.Nil

// ErrClosed is returned when the client is closed.
var ErrClosed = errors.New("redis: client is closed")

// IsNilError checks if the error is a "key does not exist" error.
func IsNilError(err error) bool {
	return errors.Is(err, Nil)
}

// IsClosedError checks if the error is a "client is closed" error.
func IsClosedError(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, redis.ErrClosed)
}
