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
	"fmt"
	"log/slog"

	"github.com/kadirpekel/forge/pkg/agent"
	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/server"
)

// ServeCmd exposes every agent over HTTP until interrupted.
type ServeCmd struct {
	Address string `short:"a" help:"Listen address (overrides server.address)."`
	Watch   *bool  `negatable:"" help:"Reload agent definitions when their files change (overrides server.watch_agents)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, cleanup, err := cli.load()
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Address != "" {
		cfg.Server.Address = c.Address
	}
	watch := cfg.Server.WatchAgents
	if c.Watch != nil {
		watch = *c.Watch
	}

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if watch {
		w := config.NewAgentWatcher(cfg.AgentsDir, func(defs map[string]agent.Definition) {
			if err := a.executor.LoadAgents(defs); err != nil {
				slog.Error("Rejected agent reload", "error", err)
			}
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("Agent watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg.Server, a.executor, server.WithObservability(a.obs))

	fmt.Printf("forge server listening on %s\n", cfg.Server.Address)
	fmt.Printf("   Health:  GET  /healthz\n")
	fmt.Printf("   Agents:  GET  /agents\n")
	fmt.Printf("   Run:     POST /agents/{name}/run\n")
	fmt.Printf("   Batch:   POST /runs\n")
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics: GET  %s\n", a.obs.MetricsPath())
	}
	for _, name := range a.executor.ListAgents() {
		fmt.Printf("     - %s\n", name)
	}

	return srv.Start(ctx)
}
