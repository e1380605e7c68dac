// Package config provides the simulator's runtime configuration: the
// toggles and addresses that shape a netsim.Registry and its admin
// surface, kept separate from the core package so the router never has
// to know how it was configured.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds simulator-wide configuration.
//
// Unlike the orchestration config this is modeled on, there is no
// LLM/timeout surface here: a network simulator's only real knobs are
// whether reconciliation runs, how noisy logging is, whether telemetry
// is exported, and where the admin server listens.
type Config struct {
	// ReconciliationEnabled controls whether TrackDna triggers the four
	// GetPublishing/GetHolding requests. Disabling it is useful for
	// scenario tests that only care about direct messaging.
	ReconciliationEnabled bool `yaml:"reconciliation_enabled"`

	// LogLevel is advisory only: netsim.Logger implementations may use
	// it to decide what to emit, but the core package never reads it
	// itself.
	LogLevel string `yaml:"log_level"`

	// MetricsEnabled controls whether servers get a Prometheus Recorder,
	// the /metrics endpoint is served, and the gauge sync loop runs. The
	// collectors themselves are registered whenever netsim/observability
	// is imported.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// TracingEnabled controls whether netsim/observability bootstraps an
	// OTLP exporter.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// OTLPEndpoint is the OTLP/gRPC collector address used when
	// TracingEnabled is true.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// AdminAddr is the listen address for the operational gRPC server
	// (health checking, reflection).
	AdminAddr string `yaml:"admin_addr"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// HTTP endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config with sensible standalone defaults.
func DefaultConfig() *Config {
	return &Config{
		ReconciliationEnabled: true,
		LogLevel:              "INFO",
		MetricsEnabled:        true,
		TracingEnabled:        false,
		OTLPEndpoint:          "localhost:4317",
		AdminAddr:             ":9090",
		MetricsAddr:           ":9091",
	}
}

// LoadFile reads a YAML file at path and overlays its fields onto
// DefaultConfig(). A field absent from the file keeps its default value.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
