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
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer provider and metrics for one process.
type Manager struct {
	config Config

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	metrics        Metrics
	registry       *prometheus.Registry
}

func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{
		config:         cfg,
		tracerProvider: noop.NewTracerProvider(),
		metrics:        NoopMetrics{},
	}
}

// Initialize builds exporters and installs them as process globals.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := NewTracerProvider(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp
	if m.config.Tracing.Enabled {
		otel.SetTracerProvider(tp)
	}

	if m.config.Metrics.Enabled {
		m.registry = prometheus.NewRegistry()
		pm, err := NewPrometheusMetrics(m.config.Metrics, m.registry)
		if err != nil {
			return err
		}
		m.metrics = pm
	}
	SetGlobalMetrics(m.metrics)

	return nil
}

func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsHandler serves the Prometheus registry, or nil when metrics are off.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) MetricsPath() string {
	return m.config.Metrics.Endpoint
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if sp, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, sp.Shutdown(ctx))
	}
	if pm, ok := m.metrics.(*PrometheusMetrics); ok {
		errs = append(errs, pm.Shutdown(ctx))
	}
	SetGlobalMetrics(nil)
	return errors.Join(errs...)
}
