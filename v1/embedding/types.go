package embedding

import "context"

// Provider turns texts into vectors with a single model.
//
// Embed must return exactly one vector per input text, in input order, each
// of length Dimension(). Implementations must be safe for concurrent use.
//
//go:generate mockgen -source=types.go -destination=mock_provider.go -package=embedding
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Logger is the subset of the logger package used by providers.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}
