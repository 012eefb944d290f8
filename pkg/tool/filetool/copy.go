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
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type CopyArgs struct {
	Source      string `json:"source" jsonschema:"required,description=File or directory to copy"`
	Destination string `json:"destination" jsonschema:"required,description=Target path"`
	Overwrite   bool   `json:"overwrite,omitempty" jsonschema:"description=Replace the destination if it exists"`
	Recursive   *bool  `json:"recursive,omitempty" jsonschema:"description=Allow copying directories (default true)"`
}

type MoveArgs struct {
	Source      string `json:"source" jsonschema:"required,description=File or directory to move"`
	Destination string `json:"destination" jsonschema:"required,description=Target path"`
	Overwrite   bool   `json:"overwrite,omitempty" jsonschema:"description=Replace the destination if it exists"`
}

// NewCopy creates the copy tool.
func NewCopy(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "copy",
			Description: "Copy a file or directory to a new location.",
		},
		func(ctx context.Context, args CopyArgs) (string, error) {
			return copyPath(ctx, cfg, args)
		},
	)
}

// NewMove creates the move tool.
func NewMove(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "move",
			Description: "Move or rename a file or directory.",
		},
		func(ctx context.Context, args MoveArgs) (string, error) {
			return movePath(cfg, args)
		},
	)
}

func checkTransfer(src, dst string, overwrite bool) (fs.FileInfo, bool, error) {
	srcInfo, ok, err := exists(src)
	if err != nil {
		return nil, false, tool.FileIO(err)
	}
	if !ok {
		return nil, false, tool.InvalidInput("Source does not exist: %s", src)
	}
	_, dstExists, err := exists(dst)
	if err != nil {
		return nil, false, tool.FileIO(err)
	}
	if dstExists && !overwrite {
		return nil, false, tool.InvalidInput("Destination already exists: %s. Set overwrite=true to replace it.", dst)
	}
	return srcInfo, dstExists, nil
}

func copyPath(ctx context.Context, cfg Config, args CopyArgs) (string, error) {
	src, dst := cfg.resolve(args.Source), cfg.resolve(args.Destination)

	info, _, err := checkTransfer(src, dst, args.Overwrite)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", tool.FileIO(err)
		}
		if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
			return "", tool.FileIO(err)
		}
		return fmt.Sprintf("Successfully copied file from %s to %s", src, dst), nil
	}

	if args.Recursive != nil && !*args.Recursive {
		return "", tool.InvalidInput("Source is a directory. Set recursive=true to copy directories.")
	}

	files, dirs, err := copyDir(ctx, src, dst)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully copied directory from %s to %s (%d files copied, %d directories created)", src, dst, files, dirs), nil
}

func copyDir(ctx context.Context, src, dst string) (files, dirs int, err error) {
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return tool.FileIO(walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return tool.FileIO(err)
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return tool.FileIO(err)
		}

		switch {
		case d.IsDir():
			if _, ok, _ := exists(target); !ok {
				if err := os.Mkdir(target, info.Mode().Perm()|0o700); err != nil {
					return tool.FileIO(err)
				}
				dirs++
			}
		case info.Mode().IsRegular():
			if err := copyFile(path, target, info.Mode().Perm()); err != nil {
				return tool.FileIO(err)
			}
			files++
		}
		return nil
	})
	return files, dirs, err
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func movePath(cfg Config, args MoveArgs) (string, error) {
	src, dst := cfg.resolve(args.Source), cfg.resolve(args.Destination)

	info, dstExists, err := checkTransfer(src, dst, args.Overwrite)
	if err != nil {
		return "", err
	}
	if dstExists {
		if err := os.RemoveAll(dst); err != nil {
			return "", tool.FileIO(err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		return "", tool.FileIO(err)
	}

	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return fmt.Sprintf("Successfully moved %s from %s to %s", kind, src, dst), nil
}
