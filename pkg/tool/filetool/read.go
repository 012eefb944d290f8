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
	"os"
	"unicode/utf8"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type ReadArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to read (absolute or relative to the working directory)"`
}

// NewRead creates the read tool, which returns a file's full text.
func NewRead(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "read",
			Description: "Read the contents of a file. Returns the full text of the file.",
		},
		func(ctx context.Context, args ReadArgs) (string, error) {
			return readFile(cfg, args)
		},
	)
}

func readFile(cfg Config, args ReadArgs) (string, error) {
	path := cfg.resolve(args.FilePath)

	info, err := os.Stat(path)
	if err != nil {
		return "", tool.FileIO(err)
	}
	if info.IsDir() {
		return "", tool.InvalidInput("%s is a directory", args.FilePath)
	}
	if info.Size() > cfg.MaxFileSize {
		return "", tool.InvalidInput("file too large: %d bytes (max: %d)", info.Size(), cfg.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", tool.FileIO(err)
	}
	if !utf8.Valid(data) {
		return "", tool.InvalidInput("file is not valid UTF-8: %s", args.FilePath)
	}
	return string(data), nil
}
