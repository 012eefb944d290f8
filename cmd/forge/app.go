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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/forge/pkg/agent"
	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/conversation"
	"github.com/kadirpekel/forge/pkg/hooks"
	"github.com/kadirpekel/forge/pkg/llms"
	"github.com/kadirpekel/forge/pkg/observability"
	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/builtin"
	"github.com/kadirpekel/forge/pkg/tool/mcptoolset"
)

// app holds everything a command needs to run agents.
type app struct {
	cfg      *config.Config
	obs      *observability.Manager
	catalog  *tool.Catalog
	executor *agent.Executor
	closers  []func() error
}

type appOptions struct {
	onEvent     agent.EventHandler
	concurrency int
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.obs = observability.NewManager(cfg.Observability)
	if err := a.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.obs.Shutdown(context.Background()) })
	metrics := a.obs.Metrics()
	tracer := a.obs.Tracer("forge")

	a.catalog, err = a.buildCatalog(ctx)
	if err != nil {
		return nil, err
	}
	dispatcher := tool.NewDispatcher(a.catalog, tool.WithMetrics(metrics), tool.WithTracer(tracer))

	pipeline, err := newPipeline(cfg.Hooks, metrics, tracer)
	if err != nil {
		return nil, err
	}

	client, err := llms.NewAnthropicClient(cfg.LLM, llms.WithMetrics(metrics), llms.WithTracer(tracer))
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	root, err := filepath.Abs(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working_dir: %w", err)
	}

	concurrency := cfg.Executor.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}

	execOpts := []agent.Option{
		agent.WithHooks(pipeline),
		agent.WithMaxTokens(cfg.LLM.MaxTokens),
		agent.WithContextLimit(cfg.Conversation.MaxTokens),
		agent.WithConcurrency(concurrency),
		agent.WithProjectRoot(root),
		agent.WithMetrics(metrics),
		agent.WithTracer(tracer),
	}
	if opts.onEvent != nil {
		execOpts = append(execOpts, agent.WithEventHandler(opts.onEvent))
	}
	if cfg.Conversation.AccurateTokens {
		tc, err := conversation.NewTokenCounter(llms.ResolveModel(agent.DefaultModel))
		if err != nil {
			slog.Warn("Accurate token counting unavailable, using estimate", "error", err)
		} else {
			execOpts = append(execOpts, agent.WithTokenCounter(tc))
		}
	}
	a.executor = agent.NewExecutor(client, dispatcher, execOpts...)

	defs, err := config.LoadAgentsDir(cfg.AgentsDir)
	if err != nil {
		return nil, err
	}
	if err := a.executor.LoadAgents(defs); err != nil {
		return nil, err
	}
	slog.Debug("Engine ready", "agents", len(defs), "tools", a.catalog.Len())

	return a, nil
}

// buildCatalog assembles built-in tools and the tools of every configured
// MCP server. A server that fails to start is skipped with a warning.
func (a *app) buildCatalog(ctx context.Context) (*tool.Catalog, error) {
	var extra []tool.Tool
	for _, sc := range a.cfg.MCPServers {
		ts, err := mcptoolset.New(sc)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", sc.Name, err)
		}
		tools, err := ts.Tools(ctx)
		if err != nil {
			slog.Warn("Skipping MCP server", "server", sc.Name, "error", err)
			_ = ts.Close()
			continue
		}
		a.closers = append(a.closers, ts.Close)
		extra = append(extra, tools...)
		slog.Info("Connected MCP server", "server", sc.Name, "tools", len(tools))
	}

	catalog, err := builtin.NewCatalog(builtin.Options{
		WorkingDirectory: a.cfg.WorkingDir,
		BashTimeout:      a.cfg.Tools.BashTimeout,
		MaxFileSize:      a.cfg.Tools.MaxFileSize,
		Extended:         a.cfg.Tools.Extended,
		Web:              a.cfg.Tools.Web,
	}, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool catalog: %w", err)
	}
	return catalog, nil
}

func newPipeline(cfg config.HooksConfig, metrics observability.Metrics, tracer trace.Tracer) (*hooks.Pipeline, error) {
	p := hooks.NewPipeline(
		hooks.WithTimeout(cfg.Timeout),
		hooks.WithShell(cfg.Shell),
		hooks.WithMetrics(metrics),
		hooks.WithTracer(tracer),
	)
	for _, h := range cfg.Scripts {
		if err := p.AddHook(h); err != nil {
			return nil, fmt.Errorf("failed to register hook: %w", err)
		}
	}
	return p, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Debug("Cleanup failed", "error", err)
		}
	}
	a.closers = nil
}
