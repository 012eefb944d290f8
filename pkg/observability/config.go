// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"fmt"
	"time"
)

// Config configures tracing and metrics.
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" mapstructure:"metrics"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on tracing. Default: false
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled"`

	// Exporter is "otlp" (default) or "stdout".
	Exporter string `yaml:"exporter,omitempty" mapstructure:"exporter"`

	// Endpoint is the OTLP gRPC collector address. Default: localhost:4317
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`

	// SamplingRate is the sampled fraction of traces, 0.0 to 1.0. Default: 1.0
	SamplingRate float64 `yaml:"sampling_rate,omitempty" mapstructure:"sampling_rate"`

	ServiceName    string `yaml:"service_name,omitempty" mapstructure:"service_name"`
	ServiceVersion string `yaml:"service_version,omitempty" mapstructure:"service_version"`

	// Insecure disables TLS to the collector. Default: true
	Insecure *bool `yaml:"insecure,omitempty" mapstructure:"insecure"`

	Headers map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`

	// Timeout bounds exporter operations. Default: 10s
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection. Default: false
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled"`

	// Endpoint is the HTTP path metrics are served on. Default: /metrics
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`

	// Namespace prefixes all metric names. Default: forge
	Namespace string `yaml:"namespace,omitempty" mapstructure:"namespace"`
}

func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = DefaultSamplingRate
	}
	if c.Exporter == "" {
		c.Exporter = ExporterOTLP
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	switch c.Exporter {
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp exporter")
		}
	case ExporterStdout:
	default:
		return fmt.Errorf("invalid exporter %q (valid: %s, %s)", c.Exporter, ExporterOTLP, ExporterStdout)
	}
	return nil
}

// IsInsecure reports whether the collector connection skips TLS.
func (c *TracingConfig) IsInsecure() bool {
	if c.Insecure == nil {
		return true
	}
	return *c.Insecure
}

func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultMetricsPath
	}
	if c.Namespace == "" {
		c.Namespace = DefaultServiceName
	}
}

func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Endpoint) == 0 || c.Endpoint[0] != '/' {
		return fmt.Errorf("endpoint must start with '/', got %q", c.Endpoint)
	}
	return nil
}
