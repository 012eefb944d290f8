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

package shelltool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/forge/pkg/tool"
)

func runCommand(t *testing.T, cfg Config, command string) (string, error) {
	t.Helper()
	bash, err := NewBash(cfg)
	require.NoError(t, err)
	input, err := json.Marshal(map[string]string{"command": command})
	require.NoError(t, err)
	return bash.Call(context.Background(), input)
}

func TestBash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	tests := []struct {
		name    string
		command string
		want    string
		wantErr string
	}{
		{name: "stdout", command: "echo hello", want: "hello\n"},
		{name: "runs in working directory", command: "ls", want: "marker.txt\n"},
		{name: "stderr appended", command: "echo out; echo warn >&2", want: "out\nstderr:\nwarn\n"},
		{name: "non-zero exit", command: "echo bad >&2; exit 2", wantErr: "command execution failed: Command exited with code 2: bad\n"},
		{name: "empty command", command: "   ", wantErr: "invalid tool input: command must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, Config{WorkingDirectory: dir}, tt.command)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestBash_Timeout(t *testing.T) {
	start := time.Now()
	_, err := runCommand(t, Config{WorkingDirectory: t.TempDir(), Timeout: 200 * time.Millisecond}, "sleep 30")
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrCommandFailed)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestBash_MissingCommand(t *testing.T) {
	bash, err := NewBash(Config{})
	require.NoError(t, err)
	_, err = bash.Call(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, ".", cfg.WorkingDirectory)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "sh", cfg.Shell)
}
