// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcptoolset exposes the tools of an MCP server launched over stdio.
//
// The connection is established lazily on the first call to Tools and the
// server's tools are registered under their own names.
package mcptoolset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/forge/pkg/tool"
)

const protocolVersion = "2024-11-05"

// Config describes one MCP server.
type Config struct {
	Name    string            `yaml:"name" mapstructure:"name"`
	Command string            `yaml:"command" mapstructure:"command"`
	Args    []string          `yaml:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `yaml:"env,omitempty" mapstructure:"env"`

	// Filter limits which server tools are exposed. Empty exposes all.
	Filter []string `yaml:"filter,omitempty" mapstructure:"filter"`

	// ClientVersion is reported to the server during initialization.
	ClientVersion string `yaml:"-" mapstructure:"-"`
}

// mcpClient is the subset of the mcp-go client the toolset uses.
type mcpClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type dialFunc func(ctx context.Context, cfg Config) (mcpClient, error)

type Toolset struct {
	cfg       Config
	dial      dialFunc
	filterSet map[string]bool

	mu        sync.Mutex
	client    mcpClient
	tools     []tool.Tool
	connected bool
}

func New(cfg Config) (*Toolset, error) {
	return newToolset(cfg, dialStdio)
}

func newToolset(cfg Config, dial dialFunc) (*Toolset, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp server %q: command is required", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "dev"
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	return &Toolset{cfg: cfg, dial: dial, filterSet: filterSet}, nil
}

func (t *Toolset) Name() string {
	return t.cfg.Name
}

// Tools returns the server's tools, connecting on first use.
func (t *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		if err := t.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %s: %w", t.cfg.Name, err)
		}
	}
	return t.tools, nil
}

func (t *Toolset) connect(ctx context.Context) error {
	c, err := t.dial(ctx, t.cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "forge",
		Version: t.cfg.ClientVersion,
	}
	initReq.Params.ProtocolVersion = protocolVersion

	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	var tools []tool.Tool
	for _, mt := range listResp.Tools {
		if t.filterSet != nil && !t.filterSet[mt.Name] {
			continue
		}
		tools = append(tools, &mcpTool{
			toolset: t,
			name:    mt.Name,
			desc:    mt.Description,
			schema:  convertSchema(mt.InputSchema),
		})
	}

	t.client = c
	t.tools = tools
	t.connected = true

	slog.Info("Connected to MCP server", "name", t.cfg.Name, "command", t.cfg.Command, "tools", len(tools))
	return nil
}

func dialStdio(_ context.Context, cfg Config) (mcpClient, error) {
	return client.NewStdioMCPClient(cfg.Command, convertEnv(cfg.Env), cfg.Args...)
}

func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.client != nil {
		err = t.client.Close()
	}
	t.client = nil
	t.tools = nil
	t.connected = false
	return err
}

func (t *Toolset) currentClient() mcpClient {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

type mcpTool struct {
	toolset *Toolset
	name    string
	desc    string
	schema  map[string]any
}

func (w *mcpTool) Name() string           { return w.name }
func (w *mcpTool) Description() string    { return w.desc }
func (w *mcpTool) Schema() map[string]any { return w.schema }

func (w *mcpTool) Call(ctx context.Context, input json.RawMessage) (string, error) {
	c := w.toolset.currentClient()
	if c == nil {
		return "", tool.CommandFailed("MCP server %s is not connected", w.toolset.Name())
	}

	var args map[string]any
	if len(bytes.TrimSpace(input)) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", tool.JSONParse(err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = w.name
	req.Params.Arguments = args

	resp, err := c.CallTool(ctx, req)
	if err != nil {
		return "", &tool.Error{Kind: tool.ErrCommandFailed, Msg: fmt.Sprintf("MCP call failed: %v", err), Err: err}
	}

	text := joinText(resp.Content)
	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "", tool.CommandFailed("%s", text)
	}
	return text, nil
}

func joinText(content []mcp.Content) string {
	var texts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertSchema converts an MCP input schema to a plain map, defaulting the
// type to object.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	if _, ok := result["type"]; !ok {
		result["type"] = "object"
	}
	return result
}

// convertEnv renders env as sorted KEY=VALUE pairs.
func convertEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

var _ tool.Tool = (*mcpTool)(nil)
