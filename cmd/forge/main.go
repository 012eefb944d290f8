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

// Command forge is the CLI for the forge agent engine.
//
// Usage:
//
//	forge run reviewer "Review pkg/agent/loop.go"
//	forge parallel reviewer="Review a.go" writer="Summarize b.go"
//	forge agents
//	forge tools --agent reviewer
//	forge validate --print-config
//	forge serve --config forge.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/forge/pkg/config"
)

// DefaultConfigFile is used when --config is not given and it exists.
const DefaultConfigFile = "forge.yaml"

type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run one agent on a prompt."`
	Parallel ParallelCmd `cmd:"" help:"Run several agents concurrently."`
	Agents   AgentsCmd   `cmd:"" help:"List agent definitions."`
	Tools    ToolsCmd    `cmd:"" help:"List available tools."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration and agent definitions."`
	Serve    ServeCmd    `cmd:"" help:"Serve agents over HTTP."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file (default: ./forge.yaml when present)." type:"path" env:"FORGE_CONFIG"`
	AgentsDir string `name:"agents-dir" help:"Directory of agent definition files (overrides agents_dir)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)."`
}

// load reads the config file and initializes logging from flags, env and
// the config's logger section. The returned cleanup closes the log file.
func (c *CLI) load() (*config.Config, func(), error) {
	path := c.Config
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if c.AgentsDir != "" {
		cfg.AgentsDir = c.AgentsDir
	}

	cleanup, err := initLogger(c.LogLevel, c.LogFile, c.LogFormat, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func main() {
	if err := config.LoadEnvFiles("."); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("forge"),
		kong.Description("Run configured AI agents with tools and lifecycle hooks."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "forge: error: %v\n", exitErr.Err)
		os.Exit(exitErr.Code)
	}
	ctx.FatalIfErrorf(err)
}
