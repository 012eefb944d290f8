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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type ListDirectoryArgs struct {
	Path       string `json:"path,omitempty" jsonschema:"description=Directory to list (default: working directory)"`
	ShowHidden bool   `json:"show_hidden,omitempty" jsonschema:"description=Include entries whose names start with a dot"`
	Recursive  bool   `json:"recursive,omitempty" jsonschema:"description=Descend into subdirectories"`
}

type dirEntry struct {
	name    string
	isDir   bool
	size    int64
	modTime string
	depth   int
}

func (e dirEntry) format() string {
	indent := strings.Repeat("  ", e.depth)
	if e.isDir {
		return fmt.Sprintf("%s%s/", indent, e.name)
	}
	return fmt.Sprintf("%s%s  %s  %s", indent, e.name, formatSize(e.size), e.modTime)
}

// NewListDirectory creates the list_directory tool. Within each directory,
// subdirectories come first, then files, each group sorted by name.
func NewListDirectory(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "list_directory",
			Description: "List the entries of a directory with sizes and modification times. Optionally recursive.",
		},
		func(ctx context.Context, args ListDirectoryArgs) (string, error) {
			return listDirectory(ctx, cfg, args)
		},
	)
}

func listDirectory(ctx context.Context, cfg Config, args ListDirectoryArgs) (string, error) {
	dir := cfg.resolveOr(args.Path)

	info, ok, err := exists(dir)
	if err != nil {
		return "", tool.FileIO(err)
	}
	if !ok {
		return "", tool.InvalidInput("Directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return "", tool.InvalidInput("Path is not a directory: %s", dir)
	}

	var entries []dirEntry
	if err := collectEntries(ctx, dir, args.ShowHidden, args.Recursive, 0, &entries); err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory is empty: %s", dir), nil
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.format()
	}
	return fmt.Sprintf("Directory: %s\n%d items:\n\n%s", dir, len(entries), strings.Join(lines, "\n")), nil
}

func collectEntries(ctx context.Context, dir string, showHidden, recursive bool, depth int, out *[]dirEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	des, err := os.ReadDir(dir)
	if err != nil {
		return tool.FileIO(err)
	}

	var level []dirEntry
	for _, de := range des {
		name := de.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		level = append(level, dirEntry{
			name:    name,
			isDir:   de.IsDir(),
			size:    info.Size(),
			modTime: info.ModTime().Format("2006-01-02 15:04:05"),
			depth:   depth,
		})
	}

	sort.SliceStable(level, func(i, j int) bool {
		if level[i].isDir != level[j].isDir {
			return level[i].isDir
		}
		return level[i].name < level[j].name
	})

	for _, e := range level {
		*out = append(*out, e)
		if recursive && e.isDir {
			if err := collectEntries(ctx, filepath.Join(dir, e.name), showHidden, recursive, depth+1, out); err != nil {
				return err
			}
		}
	}
	return nil
}
