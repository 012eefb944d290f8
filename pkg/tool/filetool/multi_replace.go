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
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

const defaultMaxReplaceFiles = 50

type MultiReplaceArgs struct {
	Pattern         string `json:"pattern" jsonschema:"required,description=Regular expression to search for"`
	Replacement     string `json:"replacement" jsonschema:"required,description=Replacement text; capture groups are written as ${1} or $name"`
	Path            string `json:"path,omitempty" jsonschema:"description=File or directory to search (default: working directory)"`
	FilePattern     string `json:"file_pattern,omitempty" jsonschema:"description=Glob applied to file names such as *.go"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"description=Match without regard to case"`
	DryRun          *bool  `json:"dry_run,omitempty" jsonschema:"description=Preview changes without writing files (default true)"`
	MaxFiles        int    `json:"max_files,omitempty" jsonschema:"description=Maximum number of files to process (default 50),minimum=1"`
}

// NewMultiReplace creates the multi_replace tool. Files are visited depth
// first in name order; dry_run defaults to true so nothing is written unless
// the model asks for it.
func NewMultiReplace(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "multi_replace",
			Description: "Replace a regular expression across many files. Previews the changes unless dry_run is false.",
		},
		func(ctx context.Context, args MultiReplaceArgs) (string, error) {
			return multiReplace(ctx, cfg, args)
		},
	)
}

type fileChange struct {
	path  string
	count int
}

func multiReplace(ctx context.Context, cfg Config, args MultiReplaceArgs) (string, error) {
	expr := args.Pattern
	if args.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", tool.InvalidInput("invalid regex pattern: %v", err)
	}
	if args.FilePattern != "" && !doublestar.ValidatePattern(args.FilePattern) {
		return "", tool.InvalidInput("invalid glob pattern: %s", args.FilePattern)
	}

	dryRun := args.DryRun == nil || *args.DryRun
	maxFiles := args.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultMaxReplaceFiles
	}

	root := cfg.resolveOr(args.Path)
	if _, ok, err := exists(root); err != nil {
		return "", tool.FileIO(err)
	} else if !ok {
		return "", tool.InvalidInput("Path does not exist: %s", root)
	}

	files, err := collectFiles(ctx, root, args.FilePattern, maxFiles)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "No files found matching the criteria", nil
	}

	var changes []fileChange
	total := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		info, err := os.Stat(path)
		if err != nil || info.Size() > cfg.MaxFileSize {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil || !utf8.Valid(data) {
			continue
		}

		content := string(data)
		count := len(re.FindAllStringIndex(content, -1))
		if count == 0 {
			continue
		}
		updated := re.ReplaceAllString(content, args.Replacement)
		if updated == content {
			continue
		}

		if !dryRun {
			if err := writeFileAtomic(path, []byte(updated)); err != nil {
				return "", tool.FileIO(err)
			}
		}
		changes = append(changes, fileChange{path: path, count: count})
		total += count
	}

	if len(changes) == 0 {
		return fmt.Sprintf("Searched %d files, no matches found for pattern: %s", len(files), args.Pattern), nil
	}

	var sb strings.Builder
	if dryRun {
		fmt.Fprintf(&sb, "Dry run: %d files would change with %d replacements:\n\n", len(changes), total)
	} else {
		fmt.Fprintf(&sb, "Applied %d replacements in %d files:\n\n", total, len(changes))
	}
	for i, c := range changes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %d replacements", c.path, c.count)
	}
	return sb.String(), nil
}

// collectFiles lists up to limit regular files under root whose names match
// filePattern, walking depth first in name order without following
// symlinked directories.
func collectFiles(ctx context.Context, root, filePattern string, limit int) ([]string, error) {
	var files []string
	stack := []string{root}

	for len(stack) > 0 && len(files) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		stat := os.Lstat
		if path == root {
			stat = os.Stat
		}
		info, err := stat(path)
		if err != nil {
			continue
		}

		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				continue
			}
			for i := len(entries) - 1; i >= 0; i-- {
				stack = append(stack, path+string(os.PathSeparator)+entries[i].Name())
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if filePattern != "" {
			if ok, err := doublestar.Match(filePattern, baseName(path)); err != nil || !ok {
				continue
			}
		}
		files = append(files, path)
	}
	return files, nil
}
