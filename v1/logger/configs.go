package logger

const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// DefaultServiceName is attached to every log entry when Config.ServiceName is empty.
const DefaultServiceName = "embedding-worker"

// Config defines the configuration for the logger.
type Config struct {
	// Level is one of debug, info, warning, error. Unknown values fall back to info.
	Level string `mapstructure:"level"`

	// EnableTracing adds trace_id and span_id to entries logged through the *WithContext methods.
	EnableTracing bool `mapstructure:"enable_tracing"`

	// ServiceName is added as the "service" field on every entry.
	ServiceName string `mapstructure:"service_name"`
}
