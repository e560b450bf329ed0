package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/model"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
)

// GenerationError is returned in a FAILED response when the provider call
// for a request's cache misses did not produce usable vectors.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with model %s failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrorType classifies the cause for dead letters, alerts and metrics.
func (e *GenerationError) ErrorType() string {
	switch {
	case errors.Is(e.Err, embedding.ErrCircuitOpen):
		return "CircuitOpenError"
	case errors.Is(e.Err, embedding.ErrRateLimited):
		return "RateLimitError"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(e.Err, embedding.ErrCountMismatch), errors.Is(e.Err, embedding.ErrDimensionMismatch):
		return "InvalidResponseError"
	}
	var pe *embedding.ProviderError
	if errors.As(e.Err, &pe) {
		return "ProviderError"
	}
	return model.ErrorTypeName(e.Err)
}

var _ model.TypedError = (*GenerationError)(nil)
