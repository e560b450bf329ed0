// Package observability defines the hook infrastructure clients use to report
// the operations they perform. A metrics implementation lives in the metrics
// package; clients accept any Observer.
package observability

import "time"

// OperationContext describes a single completed client operation.
type OperationContext struct {
	// Component is the client that performed the operation, e.g. "kafka" or "redis".
	Component string

	// Operation is the verb, e.g. "produce", "consume", "get", "upsert".
	Operation string

	// Resource is the primary target: topic, key, collection or bucket.
	Resource string

	// SubResource carries extra context such as a partition or a key prefix.
	SubResource string

	Duration time.Duration

	// Error is nil when the operation succeeded.
	Error error

	// Size is the payload size in bytes or the number of items, depending on the operation.
	Size int64

	Metadata map[string]interface{}
}

// Observer receives OperationContext notifications. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx OperationContext)

func (f ObserverFunc) ObserveOperation(ctx OperationContext) { f(ctx) }
