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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kadirpekel/forge/pkg/agent"
)

const agentFileExt = ".toml"

type agentFile struct {
	Agent agent.Definition `toml:"agent"`
}

// LoadAgentFile decodes one agent definition. Keys missing from the file
// keep their defaults, and a missing name falls back to the file stem.
func LoadAgentFile(path string) (agent.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.Definition{}, fmt.Errorf("failed to read agent file %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	def, err := ParseAgent(string(data), stem)
	if err != nil {
		return agent.Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParseAgent decodes a TOML agent definition with an [agent] table.
func ParseAgent(data, defaultName string) (agent.Definition, error) {
	file := agentFile{Agent: agent.NewDefinition(defaultName)}

	md, err := toml.Decode(data, &file)
	if err != nil {
		return agent.Definition{}, fmt.Errorf("failed to parse agent definition: %w", err)
	}
	if !md.IsDefined("agent") {
		return agent.Definition{}, fmt.Errorf("missing [agent] table")
	}
	for _, key := range md.Undecoded() {
		slog.Warn("Unknown key in agent definition", "agent", file.Agent.Name, "key", key.String())
	}

	if err := file.Agent.Validate(); err != nil {
		return agent.Definition{}, err
	}
	return file.Agent, nil
}

// LoadAgentsDir loads every *.toml file in dir, keyed by agent name. A
// missing directory yields an empty set.
func LoadAgentsDir(dir string) (map[string]agent.Definition, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Agents directory does not exist", "dir", dir)
		return map[string]agent.Definition{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read agents directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != agentFileExt {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	defs := make(map[string]agent.Definition, len(files))
	origin := make(map[string]string, len(files))
	for _, path := range files {
		def, err := LoadAgentFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := origin[def.Name]; ok {
			return nil, fmt.Errorf("duplicate agent %q in %s and %s", def.Name, prev, path)
		}
		defs[def.Name] = def
		origin[def.Name] = path
	}
	return defs, nil
}
