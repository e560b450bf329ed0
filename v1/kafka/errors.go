package kafka

import "errors"

var (
	// ErrNoBrokers is returned by NewClient when Config.Brokers is empty.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrMissingGroupID is returned when a consumer topic is configured without a group.
	ErrMissingGroupID = errors.New("kafka: consumer topic requires a group id")

	// ErrNoConsumer is returned by consumer operations on a producer-only client.
	ErrNoConsumer = errors.New("kafka: client has no consumer")

	// ErrEmptyTopic is returned by Publish when no topic is given.
	ErrEmptyTopic = errors.New("kafka: topic must not be empty")

	// ErrClosed is returned after GracefulShutdown.
	ErrClosed = errors.New("kafka: client is closed")
)

// IsClosedError reports whether err means the client was shut down.
func IsClosedError(err error) bool {
	return errors.Is(err, ErrClosed)
}
