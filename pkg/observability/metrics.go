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
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records engine activity.
type Metrics interface {
	RecordRun(ctx context.Context, agent string, duration time.Duration, turns, tokens int, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, failed bool)
	RecordHook(ctx context.Context, hookType string, duration time.Duration, err error)
}

// PrometheusMetrics records through an OpenTelemetry meter backed by a
// Prometheus exporter.
type PrometheusMetrics struct {
	provider *sdkmetric.MeterProvider

	runDuration metric.Float64Histogram
	runsTotal   metric.Int64Counter
	runErrors   metric.Int64Counter
	runTurns    metric.Int64Histogram
	runTokens   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	hookDuration metric.Float64Histogram
	hookErrors   metric.Int64Counter
}

// NewPrometheusMetrics registers the engine's instruments on reg.
func NewPrometheusMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*PrometheusMetrics, error) {
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithNamespace(cfg.Namespace),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/kadirpekel/forge")

	m := &PrometheusMetrics{provider: provider}
	b := instrumentBuilder{meter: meter}

	m.runDuration = b.histogram("agent_run_duration", "Agent run duration")
	m.runsTotal = b.counter("agent_runs", "Agent runs started")
	m.runErrors = b.counter("agent_run_errors", "Agent runs that failed")
	m.runTurns = b.intHistogram("agent_run_turns", "Model calls per agent run")
	m.runTokens = b.counter("agent_tokens", "Tokens used by agent runs")

	m.llmDuration = b.histogram("llm_request_duration", "Model request duration")
	m.llmInputTokens = b.counter("llm_tokens_input", "Input tokens sent to the model")
	m.llmOutputTokens = b.counter("llm_tokens_output", "Output tokens returned by the model")
	m.llmErrors = b.counter("llm_errors", "Failed model requests")

	m.toolDuration = b.histogram("tool_execution_duration", "Tool execution duration")
	m.toolCalls = b.counter("tool_calls", "Tool invocations")
	m.toolErrors = b.counter("tool_errors", "Tool invocations that reported an error")

	m.hookDuration = b.histogram("hook_duration", "Hook batch duration")
	m.hookErrors = b.counter("hook_errors", "Hook batches that failed")

	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) histogram(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("failed to create %s histogram: %w", name, err)
	}
	return h
}

func (b *instrumentBuilder) intHistogram(name, desc string) metric.Int64Histogram {
	h, err := b.meter.Int64Histogram(name, metric.WithDescription(desc))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("failed to create %s histogram: %w", name, err)
	}
	return h
}

func (b *instrumentBuilder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("failed to create %s counter: %w", name, err)
	}
	return c
}

func (m *PrometheusMetrics) RecordRun(ctx context.Context, agent string, duration time.Duration, turns, tokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("agent", agent))
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runTurns.Record(ctx, int64(turns), attrs)
	if tokens > 0 {
		m.runTokens.Add(ctx, int64(tokens), attrs)
	}
	if err != nil {
		m.runErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if failed {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordHook(ctx context.Context, hookType string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("hook", hookType))
	m.hookDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.hookErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func SetGlobalMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics{}
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics never returns nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
