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

// Package process runs child processes with a bounded lifetime. The child
// (and on Unix its whole process group) is killed when the timeout fires or
// the caller's context is cancelled, and is always reaped before Run returns.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ErrTimeout reports that the command outlived Command.Timeout.
var ErrTimeout = errors.New("process timed out")

// waitDelay bounds how long Run waits for output pipes after the child is
// killed, covering grandchildren that inherited them.
const waitDelay = 2 * time.Second

type Command struct {
	Name string
	Args []string
	Dir  string

	// Env is the complete child environment; nil inherits the parent's.
	Env []string

	Stdin io.Reader

	// Timeout of zero means no limit beyond ctx.
	Timeout time.Duration
}

type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Success reports a zero exit status.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Run executes c and waits for it. A non-zero exit is not an error; it is
// reported through Result.ExitCode, which is -1 when the process did not exit
// normally. On timeout the partial Result is returned with ErrTimeout.
func Run(ctx context.Context, c Command) (*Result, error) {
	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.WaitDelay = waitDelay
	configureKill(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if runCtx.Err() != nil {
		return res, fmt.Errorf("%w after %s", ErrTimeout, c.Timeout)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr), errors.Is(err, exec.ErrWaitDelay):
		return res, nil
	default:
		return res, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}
}
