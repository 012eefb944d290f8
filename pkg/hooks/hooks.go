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

// Package hooks runs external scripts at four points of an agent session:
// session start, session end, and before and after every tool call.
//
// Each script is run as `bash <script>` with the parent environment plus
// FORGE_* variables describing the event. Its stdout, when not blank, is
// treated as text to inject into the agent's prompt.
//
// FORGE_TOOL_INPUT and FORGE_TOOL_OUTPUT are capped at MaxEnvValue bytes,
// below the kernel's per-variable limit. A capped value is cut on a UTF-8
// boundary and FORGE_TOOL_INPUT_TRUNCATED or FORGE_TOOL_OUTPUT_TRUNCATED is
// set to "true".
package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/forge/pkg/observability"
	"github.com/kadirpekel/forge/pkg/process"
)

const DefaultTimeout = 30 * time.Second

// MaxEnvValue is the largest tool input or output passed to a hook.
const MaxEnvValue = 64 * 1024

// Type is a lifecycle point.
type Type string

const (
	SessionStart   Type = "session_start"
	SessionEnd     Type = "session_end"
	BeforeToolCall Type = "before_tool_call"
	AfterToolCall  Type = "after_tool_call"
)

// Types lists every lifecycle point.
var Types = []Type{SessionStart, SessionEnd, BeforeToolCall, AfterToolCall}

func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown hook type %q", s)
}

type Hook struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Type       Type   `yaml:"type" mapstructure:"type"`
	ScriptPath string `yaml:"script" mapstructure:"script"`
}

type Result struct {
	Hook     string
	Stdout   string
	Stderr   string
	ExitCode int
	Success  bool
	Duration time.Duration
}

// PromptInjection returns stdout unless it is blank.
func (r Result) PromptInjection() (string, bool) {
	if strings.TrimSpace(r.Stdout) == "" {
		return "", false
	}
	return r.Stdout, true
}

// CollectPromptInjections returns the non-blank stdout of results in order.
func CollectPromptInjections(results []Result) []string {
	var out []string
	for _, r := range results {
		if s, ok := r.PromptInjection(); ok {
			out = append(out, s)
		}
	}
	return out
}

type SessionStartContext struct {
	ProjectRoot    string
	InitialMessage string
}

type SessionEndContext struct {
	MessageCount int
	TotalChars   int
}

type ToolCallContext struct {
	ToolName string
	ToolID   string
	Input    json.RawMessage
}

type AfterToolCallContext struct {
	ToolCallContext
	Output  string
	IsError bool
}

// Pipeline holds hooks by type and runs them. It is safe for concurrent use.
type Pipeline struct {
	timeout time.Duration
	shell   string
	metrics observability.Metrics
	tracer  trace.Tracer

	mu    sync.RWMutex
	hooks map[Type][]Hook
}

type Option func(*Pipeline)

// WithTimeout bounds each script. Default: 30s
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithShell replaces the interpreter scripts are run with. Default: bash
func WithShell(shell string) Option {
	return func(p *Pipeline) {
		if shell != "" {
			p.shell = shell
		}
	}
}

func WithMetrics(m observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		timeout: DefaultTimeout,
		shell:   "bash",
		metrics: observability.GetGlobalMetrics(),
		tracer:  observability.Tracer("forge/hooks"),
		hooks:   make(map[Type][]Hook),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) AddHook(h Hook) error {
	if _, err := ParseType(string(h.Type)); err != nil {
		return err
	}
	if h.ScriptPath == "" {
		return fmt.Errorf("hook %q: script path is required", h.Name)
	}
	if h.Name == "" {
		h.Name = h.ScriptPath
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[h.Type] = append(p.hooks[h.Type], h)
	return nil
}

// Hooks returns the hooks of type t in registration order.
func (p *Pipeline) Hooks(t Type) []Hook {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Hook(nil), p.hooks[t]...)
}

func (p *Pipeline) HasHooks(t Type) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.hooks[t]) > 0
}

func (p *Pipeline) ExecuteSessionStart(ctx context.Context, sc SessionStartContext) ([]Result, error) {
	env := []string{"FORGE_PROJECT_ROOT=" + sc.ProjectRoot}
	if sc.InitialMessage != "" {
		env = append(env, "FORGE_INITIAL_MESSAGE="+sc.InitialMessage)
	}
	return p.execute(ctx, SessionStart, env)
}

func (p *Pipeline) ExecuteSessionEnd(ctx context.Context, sc SessionEndContext) ([]Result, error) {
	return p.execute(ctx, SessionEnd, []string{
		"FORGE_MESSAGE_COUNT=" + strconv.Itoa(sc.MessageCount),
		"FORGE_TOTAL_CHARS=" + strconv.Itoa(sc.TotalChars),
	})
}

func (p *Pipeline) ExecuteBeforeToolCall(ctx context.Context, tc ToolCallContext) ([]Result, error) {
	return p.execute(ctx, BeforeToolCall, toolEnv(tc))
}

func (p *Pipeline) ExecuteAfterToolCall(ctx context.Context, ac AfterToolCallContext) ([]Result, error) {
	env := toolEnv(ac.ToolCallContext)
	env = appendCapped(env, "FORGE_TOOL_OUTPUT", ac.Output)
	env = append(env, "FORGE_TOOL_ERROR="+strconv.FormatBool(ac.IsError))
	return p.execute(ctx, AfterToolCall, env)
}

func toolEnv(tc ToolCallContext) []string {
	input := "null"
	if len(tc.Input) > 0 {
		input = string(tc.Input)
	}
	env := []string{
		"FORGE_TOOL_NAME=" + tc.ToolName,
		"FORGE_TOOL_ID=" + tc.ToolID,
	}
	return appendCapped(env, "FORGE_TOOL_INPUT", input)
}

// appendCapped adds key=value, cutting value to MaxEnvValue bytes and
// flagging the cut with key_TRUNCATED.
func appendCapped(env []string, key, value string) []string {
	if len(value) <= MaxEnvValue {
		return append(env, key+"="+value)
	}
	cut := MaxEnvValue
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return append(env, key+"="+value[:cut], key+"_TRUNCATED=true")
}

// execute runs every hook of type t in order. The first hook that cannot run
// stops the batch; results gathered so far are returned with the error.
func (p *Pipeline) execute(ctx context.Context, t Type, vars []string) ([]Result, error) {
	hooks := p.Hooks(t)
	if len(hooks) == 0 {
		return nil, nil
	}

	ctx, span := p.tracer.Start(ctx, observability.SpanHook,
		trace.WithAttributes(
			attribute.String(observability.AttrHookType, string(t)),
			attribute.Int("hook.count", len(hooks)),
		),
	)
	defer span.End()

	start := time.Now()
	env := append(os.Environ(), vars...)

	results := make([]Result, 0, len(hooks))
	var err error
	for _, h := range hooks {
		var res Result
		res, err = p.runScript(ctx, h, env)
		if err != nil {
			break
		}
		results = append(results, res)
	}

	p.metrics.RecordHook(ctx, string(t), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return results, err
	}
	return results, nil
}

func (p *Pipeline) runScript(ctx context.Context, h Hook, env []string) (Result, error) {
	hookErr := func(kind error, msg string, cause error) *Error {
		return &Error{Kind: kind, Hook: h.Name, Script: h.ScriptPath, Msg: msg, Err: cause}
	}

	if _, err := os.Stat(h.ScriptPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, hookErr(ErrScriptNotFound, "", err)
		}
		return Result{}, hookErr(ErrIO, err.Error(), err)
	}

	res, err := process.Run(ctx, process.Command{
		Name:    p.shell,
		Args:    []string{h.ScriptPath},
		Env:     env,
		Timeout: p.timeout,
	})
	if errors.Is(err, process.ErrTimeout) {
		return Result{}, hookErr(ErrTimeout, fmt.Sprintf("after %s", p.timeout), err)
	}
	if err != nil {
		return Result{}, hookErr(ErrExecutionFailed, err.Error(), err)
	}
	if !utf8.Valid(res.Stdout) {
		return Result{}, hookErr(ErrInvalidOutput, "stdout is not valid UTF-8", nil)
	}

	r := Result{
		Hook:     h.Name,
		Stdout:   string(res.Stdout),
		Stderr:   strings.ToValidUTF8(string(res.Stderr), "�"),
		ExitCode: res.ExitCode,
		Success:  res.Success(),
		Duration: res.Duration,
	}
	slog.Debug("Hook finished", "hook", h.Name, "type", h.Type, "exit_code", r.ExitCode, "duration", r.Duration)
	return r, nil
}
