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

package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestPipeline_AddHook(t *testing.T) {
	p := NewPipeline()

	assert.False(t, p.HasHooks(SessionStart))
	require.NoError(t, p.AddHook(Hook{Name: "a", Type: SessionStart, ScriptPath: "a.sh"}))
	require.NoError(t, p.AddHook(Hook{Type: SessionStart, ScriptPath: "b.sh"}))

	hooks := p.Hooks(SessionStart)
	require.Len(t, hooks, 2)
	assert.Equal(t, "a", hooks[0].Name)
	assert.Equal(t, "b.sh", hooks[1].Name, "name defaults to the script path")
	assert.True(t, p.HasHooks(SessionStart))
	assert.False(t, p.HasHooks(AfterToolCall))

	assert.Error(t, p.AddHook(Hook{Type: "on_boot", ScriptPath: "x.sh"}))
	assert.Error(t, p.AddHook(Hook{Type: SessionEnd}))
}

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("session")
	assert.Error(t, err)
}

func TestExecute_NoHooks(t *testing.T) {
	results, err := NewPipeline().ExecuteSessionEnd(context.Background(), SessionEndContext{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExecuteSessionStart_Environment(t *testing.T) {
	script := writeScript(t, `echo "root=$FORGE_PROJECT_ROOT"
echo "msg=$FORGE_INITIAL_MESSAGE"
echo "inherited=$FORGE_TEST_INHERITED"
`)
	t.Setenv("FORGE_TEST_INHERITED", "yes")

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Name: "start", Type: SessionStart, ScriptPath: script}))

	results, err := p.ExecuteSessionStart(context.Background(), SessionStartContext{
		ProjectRoot:    "/work",
		InitialMessage: "hello",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Success)
	assert.Equal(t, 0, r.ExitCode)
	assert.Equal(t, "start", r.Hook)
	assert.Equal(t, "root=/work\nmsg=hello\ninherited=yes\n", r.Stdout)
}

func TestExecuteToolHooks_Environment(t *testing.T) {
	script := writeScript(t, `printf '%s|%s|%s|%s|%s' "$FORGE_TOOL_NAME" "$FORGE_TOOL_ID" "$FORGE_TOOL_INPUT" "$FORGE_TOOL_OUTPUT" "$FORGE_TOOL_ERROR"`)

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Type: BeforeToolCall, ScriptPath: script}))
	require.NoError(t, p.AddHook(Hook{Type: AfterToolCall, ScriptPath: script}))

	tc := ToolCallContext{ToolName: "read", ToolID: "toolu_1", Input: json.RawMessage(`{"file_path":"a.txt"}`)}

	before, err := p.ExecuteBeforeToolCall(context.Background(), tc)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, `read|toolu_1|{"file_path":"a.txt"}||`, before[0].Stdout)

	after, err := p.ExecuteAfterToolCall(context.Background(), AfterToolCallContext{
		ToolCallContext: tc,
		Output:          "contents",
		IsError:         true,
	})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, `read|toolu_1|{"file_path":"a.txt"}|contents|true`, after[0].Stdout)
}

func TestExecuteAfterToolCall_LargeOutput(t *testing.T) {
	script := writeScript(t, `printf '%s|%s|%s' "${#FORGE_TOOL_OUTPUT}" "$FORGE_TOOL_OUTPUT_TRUNCATED" "$FORGE_TOOL_INPUT_TRUNCATED"`)

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Type: AfterToolCall, ScriptPath: script}))

	results, err := p.ExecuteAfterToolCall(context.Background(), AfterToolCallContext{
		ToolCallContext: ToolCallContext{ToolName: "read", ToolID: "toolu_1", Input: json.RawMessage(`{}`)},
		Output:          strings.Repeat("x", 200*1024),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "65536|true|", results[0].Stdout)
}

func TestAppendCapped(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{
			name:  "short value",
			value: "abc",
			want:  []string{"K=abc"},
		},
		{
			name:  "exactly at cap",
			value: strings.Repeat("a", MaxEnvValue),
			want:  []string{"K=" + strings.Repeat("a", MaxEnvValue)},
		},
		{
			name:  "cut on rune boundary",
			value: strings.Repeat("a", MaxEnvValue-1) + "é" + "tail",
			want:  []string{"K=" + strings.Repeat("a", MaxEnvValue-1), "K_TRUNCATED=true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, appendCapped(nil, "K", tt.value))
		})
	}
}

func TestExecuteSessionEnd_Environment(t *testing.T) {
	script := writeScript(t, `echo -n "$FORGE_MESSAGE_COUNT/$FORGE_TOTAL_CHARS"`)

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Type: SessionEnd, ScriptPath: script}))

	results, err := p.ExecuteSessionEnd(context.Background(), SessionEndContext{MessageCount: 4, TotalChars: 120})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "4/120", results[0].Stdout)
}

func TestExecute_NonZeroExitContinues(t *testing.T) {
	failing := writeScript(t, "echo 'partial'\necho 'bad' >&2\nexit 3\n")
	passing := writeScript(t, "echo 'second'\n")

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Name: "failing", Type: SessionStart, ScriptPath: failing}))
	require.NoError(t, p.AddHook(Hook{Name: "passing", Type: SessionStart, ScriptPath: passing}))

	results, err := p.ExecuteSessionStart(context.Background(), SessionStartContext{ProjectRoot: "."})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Success)
	assert.Equal(t, 3, results[0].ExitCode)
	assert.Equal(t, "bad\n", results[0].Stderr)
	assert.True(t, results[1].Success)

	assert.Equal(t, []string{"partial\n", "second\n"}, CollectPromptInjections(results))
}

func TestExecute_ScriptNotFound(t *testing.T) {
	passing := writeScript(t, "echo ok\n")
	missing := filepath.Join(t.TempDir(), "missing.sh")

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Name: "first", Type: BeforeToolCall, ScriptPath: passing}))
	require.NoError(t, p.AddHook(Hook{Name: "missing", Type: BeforeToolCall, ScriptPath: missing}))

	results, err := p.ExecuteBeforeToolCall(context.Background(), ToolCallContext{ToolName: "bash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScriptNotFound))
	assert.Len(t, results, 1, "results before the failure are kept")

	var hookErr *Error
	require.True(t, errors.As(err, &hookErr))
	assert.Equal(t, "missing", hookErr.Hook)
	assert.Equal(t, missing, hookErr.Script)
}

func TestExecute_Timeout(t *testing.T) {
	script := writeScript(t, "sleep 5\n")

	p := NewPipeline(WithTimeout(100 * time.Millisecond))
	require.NoError(t, p.AddHook(Hook{Type: SessionEnd, ScriptPath: script}))

	start := time.Now()
	_, err := p.ExecuteSessionEnd(context.Background(), SessionEndContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecute_ShellNotFound(t *testing.T) {
	script := writeScript(t, "echo ok\n")

	p := NewPipeline(WithShell("forge-no-such-shell"))
	require.NoError(t, p.AddHook(Hook{Type: SessionStart, ScriptPath: script}))

	_, err := p.ExecuteSessionStart(context.Background(), SessionStartContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailed))
}

func TestExecute_InvalidOutput(t *testing.T) {
	script := writeScript(t, `printf '\377\376'`)

	p := NewPipeline()
	require.NoError(t, p.AddHook(Hook{Type: SessionStart, ScriptPath: script}))

	_, err := p.ExecuteSessionStart(context.Background(), SessionStartContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestResult_PromptInjection(t *testing.T) {
	tests := []struct {
		stdout string
		want   string
		ok     bool
	}{
		{stdout: "", ok: false},
		{stdout: "  \n\t", ok: false},
		{stdout: "use tabs\n", want: "use tabs\n", ok: true},
	}
	for _, tt := range tests {
		got, ok := Result{Stdout: tt.stdout}.PromptInjection()
		assert.Equal(t, tt.ok, ok, "stdout %q", tt.stdout)
		assert.Equal(t, tt.want, got)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: ErrTimeout, Hook: "lint", Script: "lint.sh", Msg: "after 30s"}
	assert.True(t, strings.HasPrefix(err.Error(), "hook timed out: lint"))
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrIO))
}
