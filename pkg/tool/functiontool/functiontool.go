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

// Package functiontool builds tools from typed Go functions. The input
// schema is reflected from the Args struct tags.
//
//	type ReadArgs struct {
//	    FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to read"`
//	}
//
//	readTool, err := functiontool.New(
//	    functiontool.Config{Name: "read", Description: "Read a file"},
//	    func(ctx context.Context, args ReadArgs) (string, error) {
//	        ...
//	    },
//	)
//
// Fields tagged jsonschema:"required" must be present and non-null in the
// model's input, otherwise Call fails with tool.ErrInvalidInput before the
// function runs.
package functiontool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/forge/pkg/tool"
)

// Config names and describes a function tool.
type Config struct {
	Name        string
	Description string
}

// Func is the typed implementation behind a function tool.
type Func[Args any] func(ctx context.Context, args Args) (string, error)

// New creates a tool from a typed function.
func New[Args any](cfg Config, fn Func[Args]) (tool.Tool, error) {
	return NewWithValidation(cfg, fn, nil)
}

// NewWithValidation creates a tool whose decoded arguments pass through
// validate before fn runs. A validation error is reported as invalid input.
func NewWithValidation[Args any](cfg Config, fn Func[Args], validate func(Args) error) (tool.Tool, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function is required", cfg.Name)
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", cfg.Name, err)
	}

	return &functionTool[Args]{
		config:   cfg,
		fn:       fn,
		validate: validate,
		schema:   schema,
		required: requiredFields(schema),
	}, nil
}

type functionTool[Args any] struct {
	config   Config
	fn       Func[Args]
	validate func(Args) error
	schema   map[string]any
	required []string
}

func (t *functionTool[Args]) Name() string {
	return t.config.Name
}

func (t *functionTool[Args]) Description() string {
	return t.config.Description
}

func (t *functionTool[Args]) Schema() map[string]any {
	return t.schema
}

func (t *functionTool[Args]) Call(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decodeArgs[Args](input, t.required)
	if err != nil {
		return "", err
	}
	if t.validate != nil {
		if err := t.validate(args); err != nil {
			return "", tool.InvalidInput("%s", err.Error())
		}
	}
	return t.fn(ctx, args)
}

func validateConfig(cfg Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("tool description is required")
	}
	return nil
}

var _ tool.Tool = (*functionTool[struct{}])(nil)
