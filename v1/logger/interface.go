package logger

import "context"

// Logger is the logging contract used across the pipeline.
// Components accept this interface so tests can substitute a no-op or recording logger.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Debug(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	Fatal(msg string, err error, fields ...map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

var _ Logger = (*LoggerClient)(nil)
var _ Logger = Nop{}

// Nop discards everything. Useful in tests and as a fallback when no logger is injected.
type Nop struct{}

func (Nop) Info(string, error, ...map[string]interface{})  {}
func (Nop) Debug(string, error, ...map[string]interface{}) {}
func (Nop) Warn(string, error, ...map[string]interface{})  {}
func (Nop) Error(string, error, ...map[string]interface{}) {}
func (Nop) Fatal(string, error, ...map[string]interface{}) {}

func (Nop) InfoWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (Nop) DebugWithContext(context.Context, string, error, ...map[string]interface{}) {}
func (Nop) WarnWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (Nop) ErrorWithContext(context.Context, string, error, ...map[string]interface{}) {}
