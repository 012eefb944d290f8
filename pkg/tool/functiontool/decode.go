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

package functiontool

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/kadirpekel/forge/pkg/tool"
)

// decodeArgs checks required fields and unmarshals input into Args.
func decodeArgs[Args any](input json.RawMessage, required []string) (Args, error) {
	var args Args

	input = bytes.TrimSpace(input)
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return args, tool.JSONParse(err)
	}

	for _, name := range required {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return args, tool.InvalidInput("missing %s", name)
		}
	}

	if err := json.Unmarshal(input, &args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return args, tool.InvalidInput("%s must be %s, got %s", typeErr.Field, typeErr.Type.String(), typeErr.Value)
		}
		return args, tool.JSONParse(err)
	}
	return args, nil
}

func requiredFields(schema map[string]any) []string {
	var out []string
	switch req := schema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, req...)
	}
	return out
}
