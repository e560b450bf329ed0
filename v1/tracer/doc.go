// Package tracer provides distributed tracing using OpenTelemetry.
//
// Spans are started around message handling, each generation attempt and each
// provider call. Trace context crosses the queue through message headers:
//
//	// producer side
//	headers := tr.GetCarrier(ctx)
//	err := kafkaClient.Publish(ctx, topic, key, body, headers)
//
//	// consumer side
//	ctx = tr.SetCarrierOnContext(ctx, msg.Header())
//	ctx, span := tr.StartSpan(ctx, "embedding.handle")
//	defer span.End()
package tracer
