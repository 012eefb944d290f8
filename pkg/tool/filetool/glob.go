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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type GlobArgs struct {
	Pattern    string `json:"pattern" jsonschema:"required,description=Glob pattern such as **/*.go (** matches any number of directories)"`
	Path       string `json:"path,omitempty" jsonschema:"description=Base directory for the pattern (default: working directory)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of paths to return (default 100),minimum=1"`
}

// NewGlob creates the glob tool.
func NewGlob(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "glob",
			Description: "Find files whose paths match a glob pattern. Supports ** for recursive matching.",
		},
		func(ctx context.Context, args GlobArgs) (string, error) {
			return glob(cfg, args)
		},
	)
}

func glob(cfg Config, args GlobArgs) (string, error) {
	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var paths []string
	if filepath.IsAbs(args.Pattern) {
		matches, err := doublestar.FilepathGlob(args.Pattern)
		if err != nil {
			return "", globError(err, args.Pattern)
		}
		paths = matches
	} else {
		base := cfg.resolveOr(args.Path)
		matches, err := doublestar.Glob(os.DirFS(base), filepath.ToSlash(args.Pattern))
		if err != nil {
			return "", globError(err, args.Pattern)
		}
		for _, m := range matches {
			paths = append(paths, filepath.Join(base, filepath.FromSlash(m)))
		}
	}

	sort.Strings(paths)
	if len(paths) > maxResults {
		paths = paths[:maxResults]
	}

	if len(paths) == 0 {
		return fmt.Sprintf("No files found matching pattern: %s", args.Pattern), nil
	}
	return fmt.Sprintf("Found %d files:\n\n%s", len(paths), strings.Join(paths, "\n")), nil
}

func globError(err error, pattern string) error {
	if errors.Is(err, doublestar.ErrBadPattern) {
		return tool.InvalidInput("invalid glob pattern: %s", pattern)
	}
	return tool.FileIO(err)
}
