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
	"os"
	"slices"
	"strings"

	"github.com/kadirpekel/forge/pkg/agent"
	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/tool"
)

// AgentsCmd lists agent definitions without contacting the model.
type AgentsCmd struct {
	Name string `arg:"" optional:"" help:"Show one agent in detail."`
	JSON bool   `help:"Print definitions as JSON."`
}

func (c *AgentsCmd) Run(cli *CLI) error {
	cfg, cleanup, err := cli.load()
	if err != nil {
		return err
	}
	defer cleanup()

	defs, err := config.LoadAgentsDir(cfg.AgentsDir)
	if err != nil {
		return err
	}

	if c.Name != "" {
		def, ok := defs[c.Name]
		if !ok {
			return fmt.Errorf("agent not found: %s", c.Name)
		}
		if c.JSON {
			return printJSON(os.Stdout, def)
		}
		printAgent(def)
		return nil
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)

	if c.JSON {
		list := make([]agent.Definition, 0, len(names))
		for _, name := range names {
			list = append(list, defs[name])
		}
		return printJSON(os.Stdout, list)
	}

	if len(names) == 0 {
		fmt.Printf("No agents found in %s\n", cfg.AgentsDir)
		return nil
	}
	fmt.Printf("Agents in %s:\n", cfg.AgentsDir)
	for _, name := range names {
		desc := defs[name].Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Printf("  - %s: %s\n", name, desc)
	}
	return nil
}

func printAgent(def agent.Definition) {
	fmt.Printf("Agent:       %s\n", def.Name)
	if def.Description != "" {
		fmt.Printf("Description: %s\n", def.Description)
	}
	fmt.Printf("Model:       %s (%s)\n", def.Model, def.ResolvedModel())
	fmt.Printf("Max turns:   %d\n", def.Behavior.MaxTurns)
	fmt.Printf("Stop on err: %t\n", def.Behavior.StopOnError)
	if len(def.Tools.Allowed) > 0 {
		fmt.Printf("Allowed:     %s\n", strings.Join(def.Tools.Allowed, ", "))
	} else {
		fmt.Printf("Allowed:     (all)\n")
	}
	if len(def.Tools.Denied) > 0 {
		fmt.Printf("Denied:      %s\n", strings.Join(def.Tools.Denied, ", "))
	}
	fmt.Printf("\nSystem prompt:\n%s\n", def.ComposedSystemPrompt())
}

// ToolsCmd lists the tool catalog, optionally as one agent sees it.
type ToolsCmd struct {
	Agent  string `help:"Show only the tools this agent may use."`
	Schema bool   `help:"Print full tool definitions with input schemas as JSON."`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	cfg, cleanup, err := cli.load()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	a := &app{cfg: cfg}
	defer a.Close()
	catalog, err := a.buildCatalog(ctx)
	if err != nil {
		return err
	}

	tools := catalog.Tools()
	if c.Agent != "" {
		def, err := loadAgent(cfg, c.Agent)
		if err != nil {
			return err
		}
		tools = tool.NewPermissionFilter(catalog, def.Tools.Allowed, def.Tools.Denied).AvailableTools()
	}

	if c.Schema {
		defs := make([]tool.Definition, len(tools))
		for i, t := range tools {
			defs[i] = tool.ToDefinition(t)
		}
		return printJSON(os.Stdout, defs)
	}

	for _, t := range tools {
		fmt.Printf("  %-16s %s\n", t.Name(), firstLine(t.Description()))
	}
	return nil
}

func loadAgent(cfg *config.Config, name string) (agent.Definition, error) {
	defs, err := config.LoadAgentsDir(cfg.AgentsDir)
	if err != nil {
		return agent.Definition{}, err
	}
	def, ok := defs[name]
	if !ok {
		return agent.Definition{}, fmt.Errorf("agent not found: %s", name)
	}
	return def, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

