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

package mcptoolset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/forge/pkg/tool"
)

type fakeClient struct {
	tools    []mcp.Tool
	initErr  error
	lastCall mcp.CallToolRequest
	result   *mcp.CallToolResult
	closed   bool
	initInfo mcp.Implementation
}

func (f *fakeClient) Initialize(_ context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	f.initInfo = req.Params.ClientInfo
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (f *fakeClient) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeClient) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.lastCall = req
	return f.result, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newFake() *fakeClient {
	return &fakeClient{
		tools: []mcp.Tool{
			{
				Name:        "search_issues",
				Description: "Search the issue tracker",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]any{"query": map[string]any{"type": "string"}},
					Required:   []string{"query"},
				},
			},
			{Name: "close_issue", Description: "Close an issue"},
		},
		result: &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("line one"), mcp.NewTextContent("line two")}},
	}
}

func dialer(c *fakeClient) dialFunc {
	return func(context.Context, Config) (mcpClient, error) { return c, nil }
}

func TestToolset_Tools(t *testing.T) {
	fake := newFake()
	ts, err := newToolset(Config{Command: "issues-mcp", ClientVersion: "1.2.3"}, dialer(fake))
	require.NoError(t, err)
	assert.Equal(t, "issues-mcp", ts.Name())

	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "forge", fake.initInfo.Name)
	assert.Equal(t, "1.2.3", fake.initInfo.Version)

	def := tool.ToDefinition(tools[0])
	assert.Equal(t, "search_issues", def.Name)
	assert.Equal(t, "Search the issue tracker", def.Description)
	assert.Equal(t, "object", def.InputSchema["type"])

	require.NoError(t, ts.Close())
	assert.True(t, fake.closed)
}

func TestToolset_Filter(t *testing.T) {
	ts, err := newToolset(Config{Command: "x", Filter: []string{"close_issue"}}, dialer(newFake()))
	require.NoError(t, err)

	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "close_issue", tools[0].Name())
}

func TestToolset_InitFailure(t *testing.T) {
	fake := newFake()
	fake.initErr = errors.New("handshake refused")
	ts, err := newToolset(Config{Command: "x"}, dialer(fake))
	require.NoError(t, err)

	_, err = ts.Tools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake refused")
	assert.True(t, fake.closed)
}

func TestMCPTool_Call(t *testing.T) {
	fake := newFake()
	ts, err := newToolset(Config{Command: "x"}, dialer(fake))
	require.NoError(t, err)
	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)

	out, err := tools[0].Call(context.Background(), json.RawMessage(`{"query":"crash"}`))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", out)
	assert.Equal(t, "search_issues", fake.lastCall.Params.Name)
	assert.Equal(t, map[string]any{"query": "crash"}, fake.lastCall.Params.Arguments)

	fake.result = &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.NewTextContent("no such issue")}}
	_, err = tools[1].Call(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrCommandFailed)
	assert.Contains(t, err.Error(), "no such issue")

	require.NoError(t, ts.Close())
	_, err = tools[0].Call(context.Background(), nil)
	assert.ErrorIs(t, err, tool.ErrCommandFailed)
}

func TestNew_RequiresCommand(t *testing.T) {
	_, err := New(Config{Name: "empty"})
	assert.Error(t, err)
}

func TestConvertEnv(t *testing.T) {
	assert.Nil(t, convertEnv(nil))
	assert.Equal(t, []string{"A=1", "B=2"}, convertEnv(map[string]string{"B": "2", "A": "1"}))
}
