package minio

import (
	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
	"go.uber.org/fx"
)

// FXModule provides *MinioClient.
var FXModule = fx.Module("minio",
	fx.Provide(NewClientWithDI),
)

// MinioParams groups the dependencies needed to create a client.
type MinioParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a client and injects the optional logger and observer.
func NewClientWithDI(p MinioParams) (*MinioClient, error) {
	c, err := NewClient(p.Config)
	if err != nil {
		return nil, err
	}
	if p.Logger != nil {
		c.WithLogger(p.Logger)
	}
	if p.Observer != nil {
		c.WithObserver(p.Observer)
	}
	return c, nil
}
