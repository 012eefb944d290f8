// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
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
	"strings"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type EditArgs struct {
	FilePath  string `json:"file_path" jsonschema:"required,description=Path of the file to edit"`
	OldString string `json:"old_string" jsonschema:"required,description=Exact text to replace"`
	NewString string `json:"new_string" jsonschema:"required,description=Replacement text"`
}

// NewEdit creates the edit tool. Every occurrence of old_string is replaced.
func NewEdit(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.NewWithValidation(
		functiontool.Config{
			Name:        "edit",
			Description: "Replace every occurrence of old_string with new_string in a file.",
		},
		func(ctx context.Context, args EditArgs) (string, error) {
			return editFile(cfg, args)
		},
		func(args EditArgs) error {
			if args.OldString == "" {
				return errors.New("old_string must not be empty")
			}
			return nil
		},
	)
}

func editFile(cfg Config, args EditArgs) (string, error) {
	path := cfg.resolve(args.FilePath)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", tool.FileIO(err)
	}

	contents := string(data)
	if !strings.Contains(contents, args.OldString) {
		return "", tool.InvalidInput("String not found in file: %s", args.FilePath)
	}

	updated := strings.ReplaceAll(contents, args.OldString, args.NewString)
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return "", tool.FileIO(err)
	}
	return fmt.Sprintf("Successfully replaced string in %s", args.FilePath), nil
}
