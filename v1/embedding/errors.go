package embedding

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned while a model's circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("embedding: circuit breaker open")

	// ErrRateLimited is returned when the provider throttles us or the local
	// limiter cannot grant a slot before the context deadline.
	ErrRateLimited = errors.New("embedding: rate limited")

	// ErrCountMismatch is returned when a provider returns a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding: vector count does not match text count")

	// ErrDimensionMismatch is returned when a vector's length differs from the model's dimension.
	ErrDimensionMismatch = errors.New("embedding: vector dimension mismatch")

	// ErrUnknownKind is returned by New for an unsupported provider kind.
	ErrUnknownKind = errors.New("embedding: unknown provider kind")
)

// ProviderError describes a failed call to a remote embedding backend.
type ProviderError struct {
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding: model %s: http %d: %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding: model %s: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsCircuitOpen reports whether err was caused by an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// CheckVectors verifies that vectors has one entry per text and that every
// entry has the expected dimension.
func CheckVectors(texts []string, vectors [][]float32, dimension int) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}
	return nil
}
