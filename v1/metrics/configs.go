package metrics

const (
	// DefaultAddress is where the metrics and health server listens.
	DefaultAddress = ":9090"

	// DefaultNamespace prefixes every pipeline metric.
	DefaultNamespace = "embedding_pipeline"
)

// Config controls the Prometheus registry and its HTTP server.
type Config struct {
	// Address is the listen address of the HTTP server, e.g. ":9090" or "127.0.0.1:9100".
	Address string `mapstructure:"address"`

	// ServiceName is attached as a constant "service" label on every metric.
	ServiceName string `mapstructure:"service_name"`

	// Namespace prefixes metric names. Defaults to DefaultNamespace.
	Namespace string `mapstructure:"namespace"`

	// EnableDefaultCollectors registers Go runtime, process and build info collectors.
	EnableDefaultCollectors bool `mapstructure:"enable_default_collectors"`
}
