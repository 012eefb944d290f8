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

// PermissionFilter restricts a catalog to the tools one agent may use.
//
// A denied name is never allowed. An empty allow-list allows every tool that
// is not denied; otherwise only listed tools are allowed. The filter has no
// mutable state and can be shared read-only.
type PermissionFilter struct {
	catalog *Catalog
	allowed map[string]struct{}
	denied  map[string]struct{}
}

func NewPermissionFilter(catalog *Catalog, allowed, denied []string) *PermissionFilter {
	return &PermissionFilter{
		catalog: catalog,
		allowed: toSet(allowed),
		denied:  toSet(denied),
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (f *PermissionFilter) IsToolAllowed(name string) bool {
	if _, denied := f.denied[name]; denied {
		return false
	}
	if len(f.allowed) == 0 {
		return true
	}
	_, ok := f.allowed[name]
	return ok
}

// AvailableTools returns the allowed subset of the catalog in catalog order.
func (f *PermissionFilter) AvailableTools() []Tool {
	var out []Tool
	for _, t := range f.catalog.Tools() {
		if f.IsToolAllowed(t.Name()) {
			out = append(out, t)
		}
	}
	return out
}

func (f *PermissionFilter) Definitions() []Definition {
	return definitions(f.AvailableTools())
}
