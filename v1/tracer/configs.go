package tracer

// Config configures the OpenTelemetry tracer provider.
type Config struct {
	ServiceName string `mapstructure:"service_name"`

	// AppEnv is recorded as deployment.environment.
	AppEnv string `mapstructure:"app_env"`

	// EnableExport turns on the OTLP HTTP exporter. Endpoint and headers come
	// from the standard OTEL_EXPORTER_OTLP_* environment variables.
	EnableExport bool `mapstructure:"enable_export"`
}
