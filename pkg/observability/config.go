// Copyright 2026 the Trackeo Server authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

// ExporterType represents a type of metrics exporter.
type ExporterType string

const (
	ExporterPrometheus ExporterType = "PROMETHEUS"
	ExporterNoop       ExporterType = "NOOP"
)

// Config holds all of the configuration options for the observability
// exporter.
type Config struct {
	ExporterType ExporterType `env:"OBSERVABILITY_EXPORTER, default=NOOP"`

	Prometheus *PrometheusConfig
}

// PrometheusConfig configures the Prometheus scrape endpoint.
type PrometheusConfig struct {
	// Port is where /metrics is served. It must differ from the API port.
	Port      string `env:"METRICS_PORT, default=9090"`
	Namespace string `env:"METRICS_NAMESPACE, default=trackeo"`
}

// ObservabilityExporterConfig returns the config itself so Config can be
// embedded in binary configs.
func (c *Config) ObservabilityExporterConfig() *Config {
	return c
}
