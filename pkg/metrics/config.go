package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, DefaultRegistry is used.
	Registry prometheus.Registerer
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
	}
}

// Resolve returns the Registry selected by c.
func (c Config) Resolve() *Registry {
	if c.Registry == nil {
		return DefaultRegistry
	}
	return NewRegistry(c.Registry)
}

// Instrumentable is an interface for components that can be instrumented with metrics.
type Instrumentable interface {
	// EnableMetrics enables metrics collection for this component.
	EnableMetrics(config Config) error

	// DisableMetrics disables metrics collection for this component.
	DisableMetrics()

	// MetricsEnabled returns true if metrics are currently enabled.
	MetricsEnabled() bool
}
