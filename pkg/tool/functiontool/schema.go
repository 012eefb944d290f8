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
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// generateSchema reflects an object schema for T, keeping only "type",
// "properties" and "required".
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	schemaMap, err := schemaToMap(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	if schemaMap["type"] != "object" {
		return nil, fmt.Errorf("tool input must be a struct, got schema type %v", schemaMap["type"])
	}

	properties, ok := schemaMap["properties"]
	if !ok || properties == nil {
		properties = map[string]any{}
	}
	result := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if required, ok := schemaMap["required"]; ok && required != nil {
		result["required"] = required
	}
	return result, nil
}

// schemaToMap converts a jsonschema.Schema to map[string]any.
func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	delete(result, "$schema")
	delete(result, "$id")

	return result, nil
}
