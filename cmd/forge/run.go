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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/kadirpekel/forge/pkg/agent"
	"github.com/kadirpekel/forge/pkg/llms"
)

// RunCmd runs one agent session.
type RunCmd struct {
	Agent  string   `arg:"" help:"Agent name."`
	Prompt []string `arg:"" help:"Prompt text. Use - to read it from stdin."`

	JSON   bool `help:"Print the full run result as JSON."`
	Events bool `short:"e" help:"Print tool calls and results to stderr as they happen."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, cleanup, err := cli.load()
	if err != nil {
		return err
	}
	defer cleanup()

	prompt, err := readPrompt(c.Prompt, os.Stdin)
	if err != nil {
		return err
	}

	var opts appOptions
	if c.Events {
		opts.onEvent = newEventPrinter(os.Stderr)
	}
	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.executor.ExecuteAgent(ctx, c.Agent, prompt)
	if err != nil {
		return runError(err)
	}

	if c.JSON {
		return printJSON(os.Stdout, result)
	}
	fmt.Println(result.FinalResponse)
	if result.MaxTurnsExceeded {
		fmt.Fprintf(os.Stderr, "\n(stopped after %d turns: max_turns reached)\n", result.Turns)
	}
	slog.Info("Run complete",
		"agent", result.Agent,
		"turns", result.Turns,
		"tokens", result.Tokens,
		"duration", result.Duration)
	return nil
}

// readPrompt joins args with spaces, or reads stdin when the only arg is -.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		args = []string{string(data)}
	}
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	return prompt, nil
}

// runError maps model client failures to their user-facing message and a
// distinct exit code.
func runError(err error) error {
	var ce *llms.ClientError
	if errors.As(err, &ce) {
		slog.Debug("Model client failure", "error", err)
		return &ExitError{Code: 2, Err: errors.New(ce.UserMessage())}
	}
	if errors.Is(err, agent.ErrStoppedOnError) {
		return &ExitError{Code: 3, Err: err}
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newEventPrinter returns a handler safe for concurrent runs.
func newEventPrinter(w io.Writer) agent.EventHandler {
	var mu sync.Mutex
	return func(name string, ev agent.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Type {
		case agent.EventToolCall:
			fmt.Fprintf(w, "[%s] -> %s %s\n", name, ev.Name, truncate(string(ev.Input), 200))
		case agent.EventToolResult:
			status := "ok"
			if ev.IsError {
				status = "error"
			}
			fmt.Fprintf(w, "[%s] <- %s (%s) %s\n", name, ev.ToolUseID, status, truncate(ev.Content, 200))
		case agent.EventTextResponse:
			fmt.Fprintf(w, "[%s] %s\n", name, truncate(ev.Text, 200))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
