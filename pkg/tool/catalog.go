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

package tool

import (
	"fmt"

	"github.com/kadirpekel/forge/pkg/registry"
)

// Catalog is an immutable, ordered set of tools keyed by name. It is safe
// to share between concurrent agent runs.
type Catalog struct {
	tools *registry.BaseRegistry[Tool]
}

// NewCatalog builds a catalog from tools in the given order. Duplicate
// names are rejected.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	reg := registry.NewBaseRegistry[Tool]()
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("nil tool in catalog")
		}
		if err := reg.Register(t.Name(), t); err != nil {
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}
	return &Catalog{tools: reg}, nil
}

// With returns a new catalog holding this catalog's tools followed by
// tools. The receiver is left unchanged.
func (c *Catalog) With(tools ...Tool) (*Catalog, error) {
	return NewCatalog(append(c.Tools(), tools...)...)
}

func (c *Catalog) Get(name string) (Tool, bool) {
	return c.tools.Get(name)
}

// Tools returns every tool in catalog order.
func (c *Catalog) Tools() []Tool {
	return c.tools.List()
}

func (c *Catalog) Names() []string {
	return c.tools.Names()
}

func (c *Catalog) Len() int {
	return c.tools.Count()
}

// Definitions returns the model-facing definitions in catalog order.
func (c *Catalog) Definitions() []Definition {
	return definitions(c.Tools())
}

func definitions(tools []Tool) []Definition {
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToDefinition(t))
	}
	return defs
}
