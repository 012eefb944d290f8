// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads forge.yaml and agent definition files.
//
// Loading a config file goes through these steps:
//  1. parse YAML into a map
//  2. expand ${VAR}, ${VAR:-default} and $VAR references
//  3. decode into Config with mapstructure (yaml tags)
//  4. SetDefaults, then Validate
//
// Agent definitions live one per TOML file in AgentsDir.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kadirpekel/forge/pkg/hooks"
	"github.com/kadirpekel/forge/pkg/llms"
	"github.com/kadirpekel/forge/pkg/observability"
	"github.com/kadirpekel/forge/pkg/tool/mcptoolset"
	"github.com/kadirpekel/forge/pkg/tool/shelltool"
	"github.com/kadirpekel/forge/pkg/tool/webtool"
)

const (
	DefaultAgentsDir     = "agents"
	DefaultServerAddress = ":8080"

	// APIKeyEnv is read when llm.api_key is empty.
	APIKeyEnv = "ANTHROPIC_API_KEY"
)

type Config struct {
	// WorkingDir anchors relative tool paths. Default: current directory
	WorkingDir string `yaml:"working_dir,omitempty"`

	// AgentsDir holds one <agent>.toml per agent. Default: agents
	AgentsDir string `yaml:"agents_dir,omitempty"`

	LLM           llms.Config          `yaml:"llm,omitempty"`
	Tools         ToolsConfig          `yaml:"tools,omitempty"`
	Hooks         HooksConfig          `yaml:"hooks,omitempty"`
	Conversation  ConversationConfig   `yaml:"conversation,omitempty"`
	Executor      ExecutorConfig       `yaml:"executor,omitempty"`
	MCPServers    []mcptoolset.Config  `yaml:"mcp_servers,omitempty"`
	Logger        LoggerConfig         `yaml:"logger,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty"`
}

type ToolsConfig struct {
	// Extended adds list_directory, copy, move, delete, multi_replace and task
	// to the catalog.
	Extended bool `yaml:"extended,omitempty"`

	// BashTimeout bounds each bash command. Default: 120s
	BashTimeout time.Duration `yaml:"bash_timeout,omitempty"`

	// MaxFileSize caps files read into memory, in bytes. Default: 10MB
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`

	// Web configures the opt-in web_fetch tool.
	Web webtool.Config `yaml:"web,omitempty"`
}

type HooksConfig struct {
	// Timeout bounds each hook script. Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Shell runs the scripts. Default: bash
	Shell string `yaml:"shell,omitempty"`

	Scripts []hooks.Hook `yaml:"scripts,omitempty"`
}

type ConversationConfig struct {
	// MaxTokens truncates conversations to roughly this many tokens before
	// each model call. Zero disables truncation.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// AccurateTokens counts run context size with a BPE tokenizer instead
	// of the chars/4 estimate.
	AccurateTokens bool `yaml:"accurate_tokens,omitempty"`
}

type ExecutorConfig struct {
	// Concurrency bounds parallel runs. Zero means unbounded.
	Concurrency int `yaml:"concurrency,omitempty"`
}

type ServerConfig struct {
	Address string `yaml:"address,omitempty"`

	// ReadHeaderTimeout defaults to 10s. WriteTimeout defaults to none,
	// since agent runs can take minutes.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout,omitempty"`
	WriteTimeout      time.Duration `yaml:"write_timeout,omitempty"`

	// WatchAgents reloads agent definitions when files in AgentsDir change.
	WatchAgents bool `yaml:"watch_agents,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.AgentsDir == "" {
		c.AgentsDir = DefaultAgentsDir
	}

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(APIKeyEnv)
	}
	c.LLM.SetDefaults()

	if c.Tools.BashTimeout == 0 {
		c.Tools.BashTimeout = shelltool.DefaultTimeout
	}
	if c.Hooks.Timeout == 0 {
		c.Hooks.Timeout = hooks.DefaultTimeout
	}
	if c.Hooks.Shell == "" {
		c.Hooks.Shell = "bash"
	}

	c.Logger.SetDefaults()
	c.Observability.SetDefaults()

	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 10 * time.Second
	}
}

// Validate checks everything except the API key, which only commands that
// call the model need. llms.NewAnthropicClient checks it.
func (c *Config) Validate() error {
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.Tools.BashTimeout < 0 {
		return fmt.Errorf("tools.bash_timeout must not be negative")
	}
	if c.Tools.Web.RequestsPerSecond < 0 {
		return fmt.Errorf("tools.web.requests_per_second must not be negative")
	}
	if c.Hooks.Timeout < 0 {
		return fmt.Errorf("hooks.timeout must not be negative")
	}
	for i, h := range c.Hooks.Scripts {
		if _, err := hooks.ParseType(string(h.Type)); err != nil {
			return fmt.Errorf("hooks.scripts[%d]: %w", i, err)
		}
		if h.ScriptPath == "" {
			return fmt.Errorf("hooks.scripts[%d]: script is required", i)
		}
	}
	if c.Conversation.MaxTokens < 0 {
		return fmt.Errorf("conversation.max_tokens must not be negative")
	}
	if c.Executor.Concurrency < 0 {
		return fmt.Errorf("executor.concurrency must not be negative")
	}

	seen := make(map[string]bool, len(c.MCPServers))
	for i, s := range c.MCPServers {
		if s.Name == "" || s.Command == "" {
			return fmt.Errorf("mcp_servers[%d]: name and command are required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("mcp_servers[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}

	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
