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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, ExporterOTLP, cfg.Tracing.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
	assert.True(t, cfg.Tracing.IsInsecure())
	assert.Equal(t, 10*time.Second, cfg.Tracing.Timeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.Equal(t, "forge", cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores fields", Config{Tracing: TracingConfig{Exporter: "zipkin"}}, false},
		{"bad exporter", Config{Tracing: TracingConfig{Enabled: true, Exporter: "zipkin", SamplingRate: 1}}, true},
		{"bad sampling", Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 2}}, true},
		{"stdout ok", Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 0.5}}, false},
		{"metrics path", Config{Metrics: MetricsConfig{Enabled: true, Endpoint: "metrics"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrometheusMetrics_Scrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(MetricsConfig{Namespace: "forge"}, reg)
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordToolExecution(ctx, "read", 10*time.Millisecond, false)
	m.RecordToolExecution(ctx, "read", 10*time.Millisecond, true)
	m.RecordRun(ctx, "reviewer", time.Second, 3, 120, nil)
	m.RecordLLMCall(ctx, "claude-sonnet-4-20250514", time.Second, 100, 20, errors.New("boom"))
	m.RecordHook(ctx, "before_tool_call", time.Millisecond, nil)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "forge_tool_calls_total")
	assert.Contains(t, text, `tool="read"`)
	assert.Contains(t, text, "forge_agent_runs_total")
	assert.Contains(t, text, `agent="reviewer"`)
	assert.Contains(t, text, "forge_llm_errors_total")
	assert.Contains(t, text, "forge_hook_duration")

	require.NoError(t, m.Shutdown(ctx))
}

func TestGlobalMetrics(t *testing.T) {
	t.Cleanup(func() { SetGlobalMetrics(nil) })

	assert.NotNil(t, GetGlobalMetrics())

	SetGlobalMetrics(nil)
	assert.IsType(t, NoopMetrics{}, GetGlobalMetrics())

	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(MetricsConfig{Namespace: "forge"}, reg)
	require.NoError(t, err)
	SetGlobalMetrics(m)
	assert.Same(t, m, GetGlobalMetrics())
}

func TestManager_Disabled(t *testing.T) {
	t.Cleanup(func() { SetGlobalMetrics(nil) })

	m := NewManager(Config{})
	require.NoError(t, m.Initialize(context.Background()))

	assert.Nil(t, m.MetricsHandler())
	assert.IsType(t, NoopMetrics{}, m.Metrics())

	_, span := m.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_MetricsEnabled(t *testing.T) {
	t.Cleanup(func() { SetGlobalMetrics(nil) })

	m := NewManager(Config{Metrics: MetricsConfig{Enabled: true}})
	require.NoError(t, m.Initialize(context.Background()))

	require.NotNil(t, m.MetricsHandler())
	assert.Equal(t, "/metrics", m.MetricsPath())
	assert.Same(t, m.Metrics(), GetGlobalMetrics())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.IsType(t, NoopMetrics{}, GetGlobalMetrics())
}

func TestHTTPMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(tp.Tracer("test")))
	r.Get("/agents/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/agents/reviewer", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /agents/{name}", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "/agents/{name}", attrs[AttrHTTPRoute])
	assert.Equal(t, int64(http.StatusTeapot), attrs[AttrHTTPStatusCode])
}
