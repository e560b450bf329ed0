package kafka

import (
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/observability"
)

// observeOperation notifies the observer, if any, about a produce, consume or commit.
//   - resource: the topic
//   - subResource: the message key for produce, the partition for consume and commit
func (k *KafkaClient) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if k == nil || k.observer == nil {
		return
	}

	k.observer.ObserveOperation(observability.OperationContext{
		Component:   "kafka",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    metadata,
	})
}
