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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kadirpekel/forge/pkg/agent"
)

// ParallelCmd runs a batch of independent agent sessions.
type ParallelCmd struct {
	Tasks []string `arg:"" optional:"" help:"Tasks as agent=prompt."`

	File        string `short:"f" type:"existingfile" help:"JSON file holding [{\"agent\": ..., \"prompt\": ...}]."`
	Concurrency int    `help:"Maximum concurrent runs (overrides executor.concurrency)."`
	JSON        bool   `help:"Print results as JSON."`
	Events      bool   `short:"e" help:"Print tool calls and results to stderr as they happen."`
}

type taskOutput struct {
	Agent  string           `json:"agent"`
	Prompt string           `json:"prompt"`
	Result *agent.RunResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (c *ParallelCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, cleanup, err := cli.load()
	if err != nil {
		return err
	}
	defer cleanup()

	tasks, err := c.collectTasks()
	if err != nil {
		return err
	}

	opts := appOptions{concurrency: c.Concurrency}
	if c.Events {
		opts.onEvent = newEventPrinter(os.Stderr)
	}
	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.executor.ExecuteAgentsParallel(ctx, tasks)

	out := make([]taskOutput, len(results))
	failed := 0
	for i, r := range results {
		out[i] = taskOutput{Agent: r.Task.Agent, Prompt: r.Task.Prompt, Result: r.Result}
		if r.Err != nil {
			out[i].Error = runError(r.Err).Error()
			failed++
		}
	}

	if c.JSON {
		if err := printJSON(os.Stdout, out); err != nil {
			return err
		}
	} else {
		for i, o := range out {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("=== %s ===\n", o.Agent)
			if o.Error != "" {
				fmt.Printf("error: %s\n", o.Error)
				continue
			}
			fmt.Println(o.Result.FinalResponse)
		}
	}

	if failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d tasks failed", failed, len(tasks))}
	}
	return nil
}

func (c *ParallelCmd) collectTasks() ([]agent.Task, error) {
	var tasks []agent.Task
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read tasks file: %w", err)
		}
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse tasks file %s: %w", c.File, err)
		}
	}

	for _, arg := range c.Tasks {
		t, err := parseTask(arg)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks given (use agent=prompt arguments or --file)")
	}
	return tasks, nil
}

func parseTask(arg string) (agent.Task, error) {
	name, prompt, ok := strings.Cut(arg, "=")
	name, prompt = strings.TrimSpace(name), strings.TrimSpace(prompt)
	if !ok || name == "" || prompt == "" {
		return agent.Task{}, fmt.Errorf("invalid task %q (expected agent=prompt)", arg)
	}
	return agent.Task{Agent: name, Prompt: prompt}, nil
}
