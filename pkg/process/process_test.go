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

package process

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		cmd        Command
		wantStdout string
		wantStderr string
		wantCode   int
	}{
		{
			name:       "stdout",
			cmd:        Command{Name: "sh", Args: []string{"-c", "echo hello"}},
			wantStdout: "hello\n",
		},
		{
			name:       "stderr and exit code",
			cmd:        Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}},
			wantStderr: "oops\n",
			wantCode:   3,
		},
		{
			name:       "stdin",
			cmd:        Command{Name: "cat", Stdin: strings.NewReader("piped")},
			wantStdout: "piped",
		},
		{
			name:       "env",
			cmd:        Command{Name: "sh", Args: []string{"-c", "printf %s \"$FORGE_X\""}, Env: append(os.Environ(), "FORGE_X=42")},
			wantStdout: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStdout, string(res.Stdout))
			assert.Equal(t, tt.wantStderr, string(res.Stderr))
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.wantCode == 0, res.Success())
		})
	}
}

func TestRun_Dir(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Command{Name: "pwd", Dir: dir})
	require.NoError(t, err)

	want, err := os.Stat(dir)
	require.NoError(t, err)
	got, err := os.Stat(strings.TrimSpace(string(res.Stdout)))
	require.NoError(t, err)
	assert.True(t, os.SameFile(want, got))
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	res, err := Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "echo started; sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, "started\n", string(res.Stdout))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, Command{Name: "sleep", Args: []string{"30"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NotFound(t *testing.T) {
	_, err := Run(context.Background(), Command{Name: "definitely-not-a-command-xyz"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}
