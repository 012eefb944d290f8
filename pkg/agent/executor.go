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

// Package agent runs agents: named model configurations with their own
// system prompt, tool permissions and turn limit.
//
// An Executor holds the shared pieces (model client, tool dispatcher, hook
// pipeline) and a registry of agent definitions. Each run gets its own
// Context, so runs never share conversation state and may execute in
// parallel.
package agent

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/forge/pkg/conversation"
	"github.com/kadirpekel/forge/pkg/hooks"
	"github.com/kadirpekel/forge/pkg/llms"
	"github.com/kadirpekel/forge/pkg/observability"
	"github.com/kadirpekel/forge/pkg/tool"
)

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID            string        `json:"run_id"`
	Agent            string        `json:"agent"`
	FinalResponse    string        `json:"final_response"`
	Events           []Event       `json:"events"`
	Turns            int           `json:"turns"`
	MaxTurnsExceeded bool          `json:"max_turns_exceeded"`
	Duration         time.Duration `json:"duration"`
	Tokens           int           `json:"tokens"`

	// ContextTokens is the size of the final conversation, counted with the
	// executor's token counter or estimated from its length.
	ContextTokens int `json:"context_tokens"`
}

// Task is one entry of a parallel batch.
type Task struct {
	Agent  string `json:"agent"`
	Prompt string `json:"prompt"`
}

// TaskResult pairs a task with its outcome. Exactly one of Result and Err
// is set.
type TaskResult struct {
	Task   Task
	Result *RunResult
	Err    error
}

type Executor struct {
	client       llms.Client
	dispatcher   *tool.Dispatcher
	hooks        *hooks.Pipeline
	maxTokens    int
	contextLimit int
	tokenCounter *conversation.TokenCounter
	concurrency  int
	projectRoot  string
	onEvent      EventHandler
	metrics      observability.Metrics
	tracer       trace.Tracer

	mu     sync.RWMutex
	agents map[string]Definition
}

type Option func(*Executor)

func WithHooks(p *hooks.Pipeline) Option {
	return func(e *Executor) {
		e.hooks = p
	}
}

// WithMaxTokens sets max_tokens on every model request.
func WithMaxTokens(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithContextLimit truncates each conversation to roughly maxTokens before
// every model call. Zero disables truncation.
func WithContextLimit(maxTokens int) Option {
	return func(e *Executor) {
		e.contextLimit = maxTokens
	}
}

func WithTokenCounter(tc *conversation.TokenCounter) Option {
	return func(e *Executor) {
		e.tokenCounter = tc
	}
}

// WithConcurrency bounds ExecuteAgentsParallel. Zero means unbounded.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		e.concurrency = n
	}
}

// WithProjectRoot is reported to session_start hooks.
func WithProjectRoot(dir string) Option {
	return func(e *Executor) {
		e.projectRoot = dir
	}
}

func WithEventHandler(h EventHandler) Option {
	return func(e *Executor) {
		e.onEvent = h
	}
}

func WithMetrics(m observability.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

func NewExecutor(client llms.Client, dispatcher *tool.Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		client:     client,
		dispatcher: dispatcher,
		maxTokens:  llms.DefaultMaxTokens,
		metrics:    observability.GetGlobalMetrics(),
		tracer:     observability.Tracer("forge/agent"),
		agents:     make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatcher returns the shared, unfiltered dispatcher.
func (e *Executor) Dispatcher() *tool.Dispatcher {
	return e.dispatcher
}

// LoadAgents replaces every registered definition. Nothing is replaced when
// any definition is invalid.
func (e *Executor) LoadAgents(defs map[string]Definition) error {
	agents := make(map[string]Definition, len(defs))
	for key, def := range defs {
		if def.Name == "" {
			def.Name = key
		}
		if err := def.Validate(); err != nil {
			return err
		}
		agents[def.Name] = def.clone()
	}

	e.mu.Lock()
	e.agents = agents
	e.mu.Unlock()

	slog.Debug("Loaded agents", "count", len(agents))
	return nil
}

// AddAgent inserts def, replacing any definition with the same name.
func (e *Executor) AddAgent(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[def.Name] = def.clone()
	return nil
}

func (e *Executor) GetAgent(name string) (Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.agents[name]
	if !ok {
		return Definition{}, false
	}
	return def.clone(), true
}

// ListAgents returns registered names in sorted order.
func (e *Executor) ListAgents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.agents))
}

// SpawnAgent creates a fresh Context for the named agent.
func (e *Executor) SpawnAgent(name string) (*Context, error) {
	def, ok := e.GetAgent(name)
	if !ok {
		return nil, notFound(name)
	}
	return NewContext(def), nil
}

// ExecuteAgent runs one session of the named agent on prompt: session_start
// hooks, the turn loop, then session_end hooks.
func (e *Executor) ExecuteAgent(ctx context.Context, name, prompt string) (*RunResult, error) {
	ac, err := e.SpawnAgent(name)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(
			attribute.String(observability.AttrAgentName, name),
			attribute.String(observability.AttrRunID, ac.RunID),
			attribute.String(observability.AttrLLMModel, ac.Model()),
		),
	)
	defer span.End()

	start := time.Now()
	slog.Info("Agent run started", "agent", name, "run_id", ac.RunID)

	e.sessionStart(ctx, ac, prompt)
	ac.AddUserMessage(prompt)

	result, err := e.RunAgentLoop(ctx, ac)

	e.sessionEnd(ctx, ac)

	duration := time.Since(start)
	e.metrics.RecordRun(ctx, name, duration, ac.Turns(), ac.Tokens(), err)
	span.SetAttributes(attribute.Int(observability.AttrTurn, ac.Turns()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("Agent run failed", "agent", name, "run_id", ac.RunID, "turns", ac.Turns(), "error", err)
		return nil, err
	}

	result.Duration = duration
	slog.Info("Agent run finished", "agent", name, "run_id", ac.RunID, "turns", result.Turns, "duration", duration)
	return result, nil
}

// ExecuteAgentsParallel runs every task independently and returns outcomes
// in input order. One task failing never cancels the others.
func (e *Executor) ExecuteAgentsParallel(ctx context.Context, tasks []Task) []TaskResult {
	results := make([]TaskResult, len(tasks))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, task := range tasks {
		g.Go(func() error {
			res, err := e.ExecuteAgent(ctx, task.Agent, task.Prompt)
			results[i] = TaskResult{Task: task, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Executor) sessionStart(ctx context.Context, ac *Context, prompt string) {
	if e.hooks == nil || !e.hooks.HasHooks(hooks.SessionStart) {
		return
	}

	results, err := e.hooks.ExecuteSessionStart(ctx, hooks.SessionStartContext{
		ProjectRoot:    e.projectRoot,
		InitialMessage: prompt,
	})
	if err != nil {
		slog.Warn("SessionStart hook failed", "agent", ac.AgentName(), "error", err)
	}
	logUnsuccessful(ac, hooks.SessionStart, results)

	for _, text := range hooks.CollectPromptInjections(results) {
		ac.Conversation.AppendSystemPrompt(text)
	}
}

func (e *Executor) sessionEnd(ctx context.Context, ac *Context) {
	if e.hooks == nil || !e.hooks.HasHooks(hooks.SessionEnd) {
		return
	}

	results, err := e.hooks.ExecuteSessionEnd(ctx, hooks.SessionEndContext{
		MessageCount: ac.Conversation.Len(),
		TotalChars:   ac.Conversation.TotalChars(),
	})
	if err != nil {
		slog.Warn("SessionEnd hook failed", "agent", ac.AgentName(), "error", err)
	}
	logUnsuccessful(ac, hooks.SessionEnd, results)
}

func logUnsuccessful(ac *Context, t hooks.Type, results []hooks.Result) {
	for _, r := range results {
		if !r.Success {
			slog.Warn("Hook exited with non-zero status",
				"agent", ac.AgentName(), "type", t, "hook", r.Hook,
				"exit_code", r.ExitCode, "stderr", r.Stderr)
		}
	}
}
