// Package logger provides structured logging for the embedding pipeline.
//
// # Architecture
//
// The package follows the "accept interfaces, return structs" pattern:
//   - Logger interface: the contract every pipeline component depends on
//   - LoggerClient struct: zap-backed implementation returned by NewLoggerClient
//   - Nop: a Logger that discards everything
//   - FXModule: provides both *LoggerClient and Logger
//
// # Direct Usage
//
//	log := logger.NewLoggerClient(logger.Config{
//		Level:         logger.Info,
//		EnableTracing: true,
//		ServiceName:   "embedding-worker",
//	})
//
//	log.Info("message consumed", nil, map[string]interface{}{
//		"tenant_id": "t-1",
//		"chunk_id":  "c-1",
//	})
//
//	// trace_id and span_id are attached when the context carries a span
//	log.ErrorWithContext(ctx, "generation failed", err, map[string]interface{}{
//		"attempt": 2,
//	})
//
// # Fields
//
// Every method takes an optional error and any number of field maps. Later maps
// override earlier ones when keys collide. The pipeline attaches tenant_id,
// document_id, chunk_id and message_number to every line logged for a message
// so the lines of one message can be correlated.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package logger
