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

// Package builtin assembles the built-in tool catalog.
package builtin

import (
	"fmt"
	"time"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/filetool"
	"github.com/kadirpekel/forge/pkg/tool/shelltool"
	"github.com/kadirpekel/forge/pkg/tool/webtool"
)

// CoreNames lists the core tools in catalog order.
var CoreNames = []string{"read", "write", "edit", "bash", "grep", "glob"}

// ExtendedNames lists the opt-in tools in catalog order.
var ExtendedNames = []string{"list_directory", "copy", "move", "delete", "multi_replace", "task"}

type Options struct {
	WorkingDirectory string
	BashTimeout      time.Duration
	MaxFileSize      int64

	// Extended adds list_directory, copy, move, delete, multi_replace and task.
	Extended bool

	// Web adds web_fetch when enabled.
	Web webtool.Config
}

type constructor func() (tool.Tool, error)

// Tools builds the built-in tools in catalog order.
func Tools(opts Options) ([]tool.Tool, error) {
	fileCfg := filetool.Config{
		WorkingDirectory: opts.WorkingDirectory,
		MaxFileSize:      opts.MaxFileSize,
	}
	shellCfg := shelltool.Config{
		WorkingDirectory: opts.WorkingDirectory,
		Timeout:          opts.BashTimeout,
	}

	ctors := []constructor{
		func() (tool.Tool, error) { return filetool.NewRead(fileCfg) },
		func() (tool.Tool, error) { return filetool.NewWrite(fileCfg) },
		func() (tool.Tool, error) { return filetool.NewEdit(fileCfg) },
		func() (tool.Tool, error) { return shelltool.NewBash(shellCfg) },
		func() (tool.Tool, error) { return filetool.NewGrep(fileCfg) },
		func() (tool.Tool, error) { return filetool.NewGlob(fileCfg) },
	}
	if opts.Extended {
		ctors = append(ctors,
			func() (tool.Tool, error) { return filetool.NewListDirectory(fileCfg) },
			func() (tool.Tool, error) { return filetool.NewCopy(fileCfg) },
			func() (tool.Tool, error) { return filetool.NewMove(fileCfg) },
			func() (tool.Tool, error) { return filetool.NewDelete(fileCfg) },
			func() (tool.Tool, error) { return filetool.NewMultiReplace(fileCfg) },
			func() (tool.Tool, error) { return shelltool.NewTask(shellCfg) },
		)
	}

	if opts.Web.Enabled {
		ctors = append(ctors, func() (tool.Tool, error) { return webtool.New(opts.Web) })
	}

	tools := make([]tool.Tool, 0, len(ctors))
	for _, ctor := range ctors {
		t, err := ctor()
		if err != nil {
			return nil, fmt.Errorf("failed to create built-in tool: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// NewCatalog builds a catalog of the built-in tools followed by extra.
func NewCatalog(opts Options, extra ...tool.Tool) (*tool.Catalog, error) {
	tools, err := Tools(opts)
	if err != nil {
		return nil, err
	}
	return tool.NewCatalog(append(tools, extra...)...)
}
