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
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/forge/pkg/process"
	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

type TaskStep struct {
	Name             string `json:"name" jsonschema:"required,description=Short label for the step"`
	Command          string `json:"command" jsonschema:"required,description=Shell command to run"`
	WorkingDirectory string `json:"working_directory,omitempty" jsonschema:"description=Directory for this step, relative to the task directory"`
}

type TaskArgs struct {
	Description      string     `json:"description" jsonschema:"required,description=What the task accomplishes"`
	Steps            []TaskStep `json:"steps" jsonschema:"required,description=Commands to run,minItems=1"`
	ExecutionMode    string     `json:"execution_mode,omitempty" jsonschema:"description=sequential (default) or parallel,enum=sequential,enum=parallel"`
	StopOnError      *bool      `json:"stop_on_error,omitempty" jsonschema:"description=Stop at the first failing step in sequential mode (default true)"`
	WorkingDirectory string     `json:"working_directory,omitempty" jsonschema:"description=Default directory for every step"`
}

// NewTask creates the task tool, which runs a list of shell steps one after
// another or all at once. Each step is bounded by the configured timeout.
// The task fails when any step fails; its output reports every step.
func NewTask(cfg Config) (tool.Tool, error) {
	cfg.SetDefaults()
	return functiontool.NewWithValidation(
		functiontool.Config{
			Name:        "task",
			Description: "Run a sequence of named shell commands, sequentially or in parallel, and report each step.",
		},
		func(ctx context.Context, args TaskArgs) (string, error) {
			return runTask(ctx, cfg, args)
		},
		validateTask,
	)
}

func validateTask(args TaskArgs) error {
	if len(args.Steps) == 0 {
		return errors.New("task must have at least one step")
	}
	switch args.ExecutionMode {
	case "", ModeSequential, ModeParallel:
	default:
		return fmt.Errorf("invalid execution_mode %q: use %s or %s", args.ExecutionMode, ModeSequential, ModeParallel)
	}
	for i, s := range args.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("step %d missing name", i+1)
		}
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("step %d missing command", i+1)
		}
	}
	return nil
}

type stepOutcome struct {
	ok     bool
	stdout string
	detail string
}

func runTask(ctx context.Context, cfg Config, args TaskArgs) (string, error) {
	mode := args.ExecutionMode
	if mode == "" {
		mode = ModeSequential
	}
	stopOnError := args.StopOnError == nil || *args.StopOnError

	base := resolveDir(cfg.WorkingDirectory, args.WorkingDirectory)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\nExecution mode: %s\nSteps: %d\n\n", args.Description, mode, len(args.Steps))

	if mode == ModeParallel {
		outcomes := make([]stepOutcome, len(args.Steps))
		var g errgroup.Group
		for i, step := range args.Steps {
			g.Go(func() error {
				outcomes[i] = runStep(ctx, cfg, base, step)
				return nil
			})
		}
		_ = g.Wait()

		failed := 0
		for i, o := range outcomes {
			writeStep(&sb, i, args.Steps, o)
			if !o.ok {
				failed++
			}
		}
		return finishTask(&sb, len(args.Steps)-failed, failed)
	}

	completed, failed := 0, 0
	for i, step := range args.Steps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		o := runStep(ctx, cfg, base, step)
		writeStep(&sb, i, args.Steps, o)
		if o.ok {
			completed++
			continue
		}
		failed++
		if stopOnError {
			fmt.Fprintf(&sb, "\nStopped after step %d (stop_on_error)\nSummary: %d completed, %d failed, %d skipped\n",
				i+1, completed, failed, len(args.Steps)-i-1)
			return "", tool.CommandFailed("%s", sb.String())
		}
	}
	return finishTask(&sb, completed, failed)
}

func runStep(ctx context.Context, cfg Config, base string, step TaskStep) stepOutcome {
	res, err := process.Run(ctx, process.Command{
		Name:    cfg.Shell,
		Args:    []string{"-c", step.Command},
		Dir:     resolveDir(base, step.WorkingDirectory),
		Timeout: cfg.Timeout,
	})
	if errors.Is(err, process.ErrTimeout) {
		return stepOutcome{detail: fmt.Sprintf("timed out after %s", cfg.Timeout)}
	}
	if err != nil {
		return stepOutcome{detail: err.Error()}
	}
	if !res.Success() {
		detail := fmt.Sprintf("exit code %d", res.ExitCode)
		if stderr := strings.TrimSpace(string(res.Stderr)); stderr != "" {
			detail += ": " + stderr
		}
		return stepOutcome{detail: detail}
	}
	return stepOutcome{ok: true, stdout: strings.TrimSpace(string(res.Stdout))}
}

func writeStep(sb *strings.Builder, i int, steps []TaskStep, o stepOutcome) {
	fmt.Fprintf(sb, "Step %d/%d: %s\n", i+1, len(steps), steps[i].Name)
	if o.ok {
		sb.WriteString("  Success\n")
		if o.stdout != "" {
			fmt.Fprintf(sb, "  Output: %s\n", o.stdout)
		}
		return
	}
	fmt.Fprintf(sb, "  Failed: %s\n", o.detail)
}

func finishTask(sb *strings.Builder, completed, failed int) (string, error) {
	fmt.Fprintf(sb, "\nTask completed: %d succeeded, %d failed\n", completed, failed)
	if failed > 0 {
		return "", tool.CommandFailed("%s", sb.String())
	}
	return sb.String(), nil
}

func resolveDir(base, dir string) string {
	if dir == "" {
		return base
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}
