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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/forge/pkg/agent"
	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/llms"
)

func TestParseTask(t *testing.T) {
	tests := []struct {
		arg     string
		want    agent.Task
		wantErr bool
	}{
		{arg: "reviewer=Review main.go", want: agent.Task{Agent: "reviewer", Prompt: "Review main.go"}},
		{arg: " a = x=y ", want: agent.Task{Agent: "a", Prompt: "x=y"}},
		{arg: "reviewer", wantErr: true},
		{arg: "=prompt", wantErr: true},
		{arg: "reviewer=", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseTask(tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectTasks(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"agent": "a", "prompt": "one"}]`), 0o644))

	cmd := ParallelCmd{File: file, Tasks: []string{"b=two"}}
	tasks, err := cmd.collectTasks()
	require.NoError(t, err)
	assert.Equal(t, []agent.Task{{Agent: "a", Prompt: "one"}, {Agent: "b", Prompt: "two"}}, tasks)

	_, err = (&ParallelCmd{}).collectTasks()
	assert.Error(t, err)
}

func TestReadPrompt(t *testing.T) {
	got, err := readPrompt([]string{"fix", "the", "bug"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fix the bug", got)

	got, err = readPrompt([]string{"-"}, strings.NewReader("  from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	_, err = readPrompt([]string{" "}, nil)
	assert.Error(t, err)
}

func TestRunError(t *testing.T) {
	clientErr := &agent.Error{Kind: agent.ErrClient, Agent: "a", Err: &llms.ClientError{Kind: llms.ErrInvalidAPIKey, StatusCode: 401}}

	var exit *ExitError
	require.ErrorAs(t, runError(clientErr), &exit)
	assert.Equal(t, 2, exit.Code)
	assert.Equal(t, "Your API key is invalid. Please update it in your configuration.", exit.Error())

	stopped := &agent.Error{Kind: agent.ErrStoppedOnError, Agent: "a", Detail: "boom"}
	require.ErrorAs(t, runError(stopped), &exit)
	assert.Equal(t, 3, exit.Code)

	plain := errors.New("plain")
	assert.Same(t, plain, runError(plain))
}

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	handle := newEventPrinter(&buf)

	handle("a", agent.Event{Type: agent.EventToolCall, Name: "read", Input: json.RawMessage(`{"path":"x"}`)})
	handle("a", agent.Event{Type: agent.EventToolResult, ToolUseID: "t1", Content: "line1\nline2", IsError: true})
	handle("a", agent.Event{Type: agent.EventTextResponse, Text: strings.Repeat("x", 300)})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `[a] -> read {"path":"x"}`, lines[0])
	assert.Equal(t, "[a] <- t1 (error) line1 line2", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "..."))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestInitLogger_Priority(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logFile := filepath.Join(t.TempDir(), "forge.log")
	t.Setenv(LogLevelEnvVar, "error")
	t.Setenv(LogFileEnvVar, logFile)
	t.Setenv(LogFormatEnvVar, "")

	cleanup, err := initLogger("", "", "", config.LoggerConfig{Level: "debug", Format: "simple"})
	require.NoError(t, err)
	slog.Warn("dropped")
	slog.Error("kept")
	cleanup()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "ERROR kept\n", string(data))

	_, err = initLogger("loud", "", "", config.LoggerConfig{})
	assert.Error(t, err)
}

// fakeMessagesAPI answers every request with a single text block.
func fakeMessagesAPI(t *testing.T, text string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"msg_1","model":"m","content":[{"type":"text","text":%q}],"stop_reason":"end_turn","usage":{"input_tokens":4,"output_tokens":2}}`, text)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNewApp_EndToEnd(t *testing.T) {
	api := fakeMessagesAPI(t, "all good")

	agentsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "helper.toml"), []byte(`
[agent]
description = "Helps"

[agent.tools]
allowed = ["read", "glob"]
`), 0o644))

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
working_dir: %s
agents_dir: %s
llm:
  api_key: sk-test
  base_url: %s
tools:
  extended: true
`, t.TempDir(), agentsDir, api.URL)))
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, appOptions{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"helper"}, a.executor.ListAgents())
	assert.Equal(t, 12, a.catalog.Len())

	result, err := a.executor.ExecuteAgent(context.Background(), "helper", "hello")
	require.NoError(t, err)
	assert.Equal(t, "all good", result.FinalResponse)
	assert.Equal(t, 1, result.Turns)
	assert.Equal(t, 6, result.Tokens)
	assert.Positive(t, result.ContextTokens)
}

func TestNewApp_MissingAPIKey(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	cfg, err := config.Parse([]byte("agents_dir: " + t.TempDir()))
	require.NoError(t, err)

	_, err = newApp(context.Background(), cfg, appOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}
