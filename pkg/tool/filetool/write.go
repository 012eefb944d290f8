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
	"fmt"

	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

type WriteArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to write"`
	Content  string `json:"content" jsonschema:"required,description=Full content to write to the file"`
}

// NewWrite creates the write tool. Parent directories are created and the
// file is replaced atomically.
func NewWrite(cfg Config) (tool.Tool, error) {
	cfg = cfg.withDefaults()
	return functiontool.New(
		functiontool.Config{
			Name:        "write",
			Description: "Write content to a file. Creates the file and any parent directories or overwrites an existing file.",
		},
		func(ctx context.Context, args WriteArgs) (string, error) {
			if err := writeFileAtomic(cfg.resolve(args.FilePath), []byte(args.Content)); err != nil {
				return "", tool.FileIO(err)
			}
			return fmt.Sprintf("Successfully wrote %d bytes to %s", len(args.Content), args.FilePath), nil
		},
	)
}
