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

type GrepArgs struct {
	Pattern         string `json:"pattern" jsonschema:"required,description=Regular expression to search for"`
	Path            string `json:"path,omitempty" jsonschema:"description=File or directory to search (default: working directory)"`
	FilePattern     string `json:"file_pattern,omitempty" jsonschema:"description=Glob applied to file names such as *.go"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"description=Match without regard to case"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of matching lines to return (default 100),minimum=1"`
}

// NewGrep creates the grep tool. Directories are walked depth first in name
// order and the walk stops as soon as max_results lines have matched.
func NewGrep(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "grep",
			Description: "Search file contents for a regular expression. Returns matching lines as file:line: text.",
		},
		func(ctx context.Context, args GrepArgs) (string, error) {
			return grep(ctx, cfg, args)
		},
	)
}

func grep(ctx context.Context, cfg Config, args GrepArgs) (string, error) {
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

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	root := cfg.resolveOr(args.Path)
	if _, ok, err := exists(root); err != nil {
		return "", tool.FileIO(err)
	} else if !ok {
		return "", tool.InvalidInput("Path does not exist: %s", root)
	}

	s := &searcher{
		re:          re,
		filePattern: args.FilePattern,
		maxResults:  maxResults,
		maxFileSize: cfg.MaxFileSize,
	}
	if err := s.walk(ctx, root); err != nil {
		return "", err
	}

	if len(s.matches) == 0 {
		return fmt.Sprintf("No matches found for pattern: %s", args.Pattern), nil
	}
	return fmt.Sprintf("Found %d matches:\n\n%s", len(s.matches), strings.Join(s.matches, "\n")), nil
}

type searcher struct {
	re          *regexp.Regexp
	filePattern string
	maxResults  int
	maxFileSize int64
	matches     []string
}

func (s *searcher) done() bool {
	return len(s.matches) >= s.maxResults
}

// walk visits root with an explicit stack. Entries are pushed in reverse so
// they pop in name order. Symlinked directories are not followed.
func (s *searcher) walk(ctx context.Context, root string) error {
	stack := []string{root}

	for len(stack) > 0 && !s.done() {
		if err := ctx.Err(); err != nil {
			return err
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

		if !info.IsDir() {
			s.searchFile(path, info.Size())
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			continue
		}
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, path+string(os.PathSeparator)+entries[i].Name())
		}
	}
	return nil
}

func (s *searcher) searchFile(path string, size int64) {
	if s.filePattern != "" {
		ok, err := doublestar.Match(s.filePattern, baseName(path))
		if err != nil || !ok {
			return
		}
	}
	if size > s.maxFileSize {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		return
	}

	for i, line := range splitLines(string(data)) {
		if s.done() {
			return
		}
		if s.re.MatchString(line) {
			s.matches = append(s.matches, fmt.Sprintf("%s:%d: %s", path, i+1, strings.TrimSpace(line)))
		}
	}
}

// splitLines splits on \n, dropping a trailing \r per line and the empty
// element after a final newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, os.PathSeparator); i >= 0 {
		return path[i+1:]
	}
	return path
}
