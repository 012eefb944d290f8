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

package filetool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type DeleteArgs struct {
	Path      string `json:"path" jsonschema:"required,description=File or directory to delete"`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Required to delete a directory and its contents"`
}

// NewDelete creates the delete tool.
func NewDelete(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "delete",
			Description: "Delete a file, or a directory when recursive is true.",
		},
		func(ctx context.Context, args DeleteArgs) (string, error) {
			return deletePath(cfg, args)
		},
	)
}

func deletePath(cfg Config, args DeleteArgs) (string, error) {
	path := cfg.resolve(args.Path)

	info, ok, err := exists(path)
	if err != nil {
		return "", tool.FileIO(err)
	}
	if !ok {
		return "", tool.InvalidInput("Path does not exist: %s", path)
	}

	if !info.IsDir() {
		if err := os.Remove(path); err != nil {
			return "", tool.FileIO(err)
		}
		return fmt.Sprintf("Successfully deleted file: %s", path), nil
	}

	if !args.Recursive {
		return "", tool.InvalidInput("Path is a directory. Set recursive=true to delete directories and their contents.")
	}

	var files, dirs int
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs++
		} else {
			files++
		}
		return nil
	})

	if err := os.RemoveAll(path); err != nil {
		return "", tool.FileIO(err)
	}
	return fmt.Sprintf("Successfully deleted directory: %s (%d files and %d directories removed)", path, files, dirs), nil
}
