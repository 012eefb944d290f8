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

// Package shelltool provides the shell tools: bash and task.
package shelltool

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kadirpekel/forge/pkg/process"
	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

const DefaultTimeout = 120 * time.Second

type Config struct {
	// WorkingDirectory is where commands run. Default: current directory.
	WorkingDirectory string

	// Timeout bounds each command. Default: 120s
	Timeout time.Duration

	// Shell is invoked as `<shell> -c <command>`. Default: sh
	Shell string
}

func (c *Config) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Shell == "" {
		c.Shell = "sh"
	}
}

type BashArgs struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to execute (pipes and redirects are supported)"`
}

// NewBash creates the bash tool.
func NewBash(cfg Config) (tool.Tool, error) {
	cfg.SetDefaults()
	return functiontool.NewWithValidation(
		functiontool.Config{
			Name:        "bash",
			Description: "Execute a shell command in the working directory and return its output.",
		},
		func(ctx context.Context, args BashArgs) (string, error) {
			return runBash(ctx, cfg, args.Command)
		},
		func(args BashArgs) error {
			if strings.TrimSpace(args.Command) == "" {
				return errors.New("command must not be empty")
			}
			return nil
		},
	)
}

func runBash(ctx context.Context, cfg Config, command string) (string, error) {
	res, err := process.Run(ctx, process.Command{
		Name:    cfg.Shell,
		Args:    []string{"-c", command},
		Dir:     cfg.WorkingDirectory,
		Timeout: cfg.Timeout,
	})
	if errors.Is(err, process.ErrTimeout) {
		return "", tool.CommandFailed("command timed out after %s", cfg.Timeout)
	}
	if err != nil {
		return "", &tool.Error{Kind: tool.ErrCommandFailed, Msg: err.Error(), Err: err}
	}

	stderr := string(res.Stderr)
	if !res.Success() {
		return "", tool.CommandFailed("Command exited with code %d: %s", res.ExitCode, stderr)
	}

	out := string(res.Stdout)
	if stderr != "" {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += "stderr:\n" + stderr
	}
	return out, nil
}
