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

package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/forge/pkg/observability"
)

// Dispatcher executes tool uses against a catalog. It never returns a Go
// error: every failure becomes a Result with OutcomeError.
type Dispatcher struct {
	catalog *Catalog
	metrics observability.Metrics
	tracer  trace.Tracer
}

type DispatcherOption func(*Dispatcher)

func WithMetrics(m observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

func NewDispatcher(catalog *Catalog, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		catalog: catalog,
		metrics: observability.GetGlobalMetrics(),
		tracer:  observability.Tracer("forge/tool"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}

// Dispatch runs use and reports its outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, use ToolUse) Result {
	ctx, span := d.tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, use.Name),
			attribute.String(observability.AttrToolUseID, use.ID),
		),
	)
	defer span.End()

	start := time.Now()
	content, err := d.call(ctx, use)
	duration := time.Since(start)

	d.metrics.RecordToolExecution(ctx, use.Name, duration, err != nil)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.Debug("Tool failed", "tool", use.Name, "id", use.ID, "duration", duration, "error", err)
		return ErrorResult(use.ID, err.Error())
	}

	slog.Debug("Tool succeeded", "tool", use.Name, "id", use.ID, "duration", duration)
	return SuccessResult(use.ID, content)
}

func (d *Dispatcher) call(ctx context.Context, use ToolUse) (string, error) {
	t, ok := d.catalog.Get(use.Name)
	if !ok {
		return "", NotFound(use.Name)
	}

	input, err := normalizeInput(use.Input)
	if err != nil {
		return "", err
	}

	out, err := t.Call(ctx, input)
	if err != nil {
		var toolErr *Error
		if errors.As(err, &toolErr) {
			return "", toolErr
		}
		return "", &Error{Kind: ErrCommandFailed, Msg: err.Error(), Err: err}
	}
	return out, nil
}

// normalizeInput accepts a JSON object, treating absent or null input as an
// empty object.
func normalizeInput(input json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(trimmed) {
		return nil, JSONParse(fmt.Errorf("tool input is not valid JSON"))
	}
	if trimmed[0] != '{' {
		return nil, JSONParse(fmt.Errorf("tool input must be a JSON object"))
	}
	return json.RawMessage(trimmed), nil
}

// FilteredDispatcher enforces one agent's PermissionFilter in front of a
// shared Dispatcher.
type FilteredDispatcher struct {
	base   *Dispatcher
	filter *PermissionFilter
}

func NewFilteredDispatcher(base *Dispatcher, allowed, denied []string) *FilteredDispatcher {
	return &FilteredDispatcher{
		base:   base,
		filter: NewPermissionFilter(base.Catalog(), allowed, denied),
	}
}

func (f *FilteredDispatcher) Filter() *PermissionFilter {
	return f.filter
}

func (f *FilteredDispatcher) Dispatch(ctx context.Context, use ToolUse) Result {
	if !f.filter.IsToolAllowed(use.Name) {
		slog.Warn("Tool denied for agent", "tool", use.Name, "id", use.ID)
		return ErrorResult(use.ID, fmt.Sprintf("Tool '%s' is not allowed for this agent", use.Name))
	}
	return f.base.Dispatch(ctx, use)
}
