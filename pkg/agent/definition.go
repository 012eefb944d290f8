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

package agent

import (
	"strings"

	"github.com/kadirpekel/forge/pkg/llms"
)

const (
	DefaultModel    = "sonnet"
	DefaultMaxTurns = 10
)

// Definition describes one agent. It is immutable once registered.
type Definition struct {
	Name         string       `toml:"name" json:"name"`
	Description  string       `toml:"description" json:"description,omitempty"`
	Model        string       `toml:"model" json:"model"`
	SystemPrompt SystemPrompt `toml:"system_prompt" json:"system_prompt"`
	Tools        ToolPolicy   `toml:"tools" json:"tools"`
	Behavior     Behavior     `toml:"behavior" json:"behavior"`
}

type SystemPrompt struct {
	Role         string `toml:"role" json:"role"`
	Instructions string `toml:"instructions" json:"instructions"`
}

// ToolPolicy restricts the tools an agent may call. An empty Allowed list
// means every tool not in Denied; Denied always wins.
type ToolPolicy struct {
	Allowed []string `toml:"allowed" json:"allowed,omitempty"`
	Denied  []string `toml:"denied" json:"denied,omitempty"`
}

type Behavior struct {
	MaxTurns    int  `toml:"max_turns" json:"max_turns"`
	StopOnError bool `toml:"stop_on_error" json:"stop_on_error"`
}

// NewDefinition returns a definition with default model and turn limit.
func NewDefinition(name string) Definition {
	return Definition{
		Name:     name,
		Model:    DefaultModel,
		Behavior: Behavior{MaxTurns: DefaultMaxTurns},
	}
}

// ComposedSystemPrompt joins role and instructions with a blank line.
func (d Definition) ComposedSystemPrompt() string {
	return d.SystemPrompt.Role + "\n\n" + d.SystemPrompt.Instructions
}

// ResolvedModel expands model aliases such as "sonnet".
func (d Definition) ResolvedModel() string {
	return llms.ResolveModel(d.Model)
}

// Validate fills an empty model with the default and rejects definitions
// that cannot run.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalidConfig(d.Name, "agent name is required")
	}
	if d.Model == "" {
		d.Model = DefaultModel
	}
	if d.Behavior.MaxTurns < 0 {
		return invalidConfig(d.Name, "agent %q: max_turns must not be negative, got %d", d.Name, d.Behavior.MaxTurns)
	}
	return nil
}

func (d Definition) clone() Definition {
	d.Tools.Allowed = append([]string(nil), d.Tools.Allowed...)
	d.Tools.Denied = append([]string(nil), d.Tools.Denied...)
	return d
}
