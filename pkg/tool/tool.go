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

// Package tool defines the capabilities an agent can invoke and the
// machinery that exposes them to the model.
//
// # Building Blocks
//
//	Tool              - a named capability with a JSON Schema for its input
//	Catalog           - an immutable, ordered set of tools keyed by name
//	PermissionFilter  - an allow/deny policy evaluated against a catalog
//	Dispatcher        - runs a ToolUse against the catalog and always
//	                    produces a Result, never a Go error
//
// Tools report failures by returning an error from Call. The dispatcher
// turns every such error into a Result whose Outcome is OutcomeError so the
// model can see what went wrong and try something else.
//
// # Adding Tools
//
// Typed tools are easiest to build with functiontool:
//
//	type EchoArgs struct {
//	    Text string `json:"text" jsonschema:"required,description=Text to echo"`
//	}
//
//	echo, err := functiontool.New(
//	    functiontool.Config{Name: "echo", Description: "Echo text back"},
//	    func(ctx context.Context, args EchoArgs) (string, error) {
//	        return args.Text, nil
//	    },
//	)
//
//	catalog, err := tool.NewCatalog(echo)
package tool

import (
	"context"
	"encoding/json"

	"github.com/kadirpekel/forge/pkg/conversation"
)

// Tool is a capability the model can request by name.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema returns the JSON Schema (type object) of the tool's input.
	Schema() map[string]any

	// Call executes the tool. The returned string is shown to the model.
	Call(ctx context.Context, input json.RawMessage) (string, error)
}

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToDefinition converts a tool to a Definition.
func ToDefinition(t Tool) Definition {
	schema := t.Schema()
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: schema,
	}
}

// ToolUse is the model's request to invoke a tool, correlated by ID.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Outcome tells whether a tool invocation succeeded.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
)

func (o Outcome) String() string {
	if o == OutcomeError {
		return "error"
	}
	return "success"
}

// Result is the outcome of one ToolUse.
type Result struct {
	ToolUseID string
	Content   string
	Outcome   Outcome
}

func SuccessResult(toolUseID, content string) Result {
	return Result{ToolUseID: toolUseID, Content: content, Outcome: OutcomeSuccess}
}

func ErrorResult(toolUseID, content string) Result {
	return Result{ToolUseID: toolUseID, Content: content, Outcome: OutcomeError}
}

func (r Result) IsError() bool {
	return r.Outcome == OutcomeError
}

// Block converts the result to a tool_result content block for replay to
// the model.
func (r Result) Block() conversation.ContentBlock {
	return conversation.ToolResultBlock(r.ToolUseID, r.Content, r.IsError())
}
