package rabbit

import (
	"errors"
	"fmt"
	"net"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrConnectionFailed is returned when the broker cannot be reached.
	ErrConnectionFailed = errors.New("rabbit: connection failed")

	// ErrChannelClosed is returned when publishing on a closed channel.
	ErrChannelClosed = errors.New("rabbit: channel closed")

	// ErrNack is returned when the broker negatively acknowledges a publish.
	ErrNack = errors.New("rabbit: publish not acknowledged by broker")

	// ErrAccessDenied is returned for authentication and permission failures.
	ErrAccessDenied = errors.New("rabbit: access denied")

	// ErrExchangeNotFound is returned when publishing to an undeclared exchange.
	ErrExchangeNotFound = errors.New("rabbit: exchange not found")

	// ErrClosed is returned after GracefulShutdown.
	ErrClosed = errors.New("rabbit: client closed")
)

// TranslateError maps AMQP and network errors onto the package sentinels.
// Unknown errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.AccessRefused:
			return fmt.Errorf("%w: %s", ErrAccessDenied, amqpErr.Reason)
		case amqp.NotFound:
			return fmt.Errorf("%w: %s", ErrExchangeNotFound, amqpErr.Reason)
		case amqp.ChannelError, amqp.ConnectionForced:
			return fmt.Errorf("%w: %s", ErrChannelClosed, amqpErr.Reason)
		}
		return err
	}
	if errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return err
}

// IsRetryableError reports whether a later publish might succeed.
func IsRetryableError(err error) bool {
	err = TranslateError(err)
	return errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrChannelClosed) || errors.Is(err, ErrNack)
}
