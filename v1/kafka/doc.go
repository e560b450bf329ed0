// Package kafka wraps segmentio/kafka-go for the embedding pipeline.
//
// One KafkaClient owns a topic-less producer, so completion events, dead
// letters and alerts go through the same writer, and optionally a consumer
// group reader for the inbound request topic.
//
// Publishing:
//
//	err := client.Publish(ctx, "embedding-complete", chunkID, payload, tracer.GetCarrier(ctx))
//
// Consuming (offsets are committed explicitly, after handling):
//
//	wg := &sync.WaitGroup{}
//	msgs, err := client.Consume(ctx, wg)
//	for msg := range msgs {
//		handle(msg.Body())
//		if err := msg.CommitMsg(); err != nil {
//			log.Error("commit failed", err, nil)
//		}
//	}
//	wg.Wait()
//
// Delivery is at-least-once: a message whose commit did not happen is
// redelivered, so handlers must be idempotent.
package kafka
