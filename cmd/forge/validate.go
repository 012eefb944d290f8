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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/tool/builtin"
	"github.com/kadirpekel/forge/pkg/tool/webtool"
)

// ValidateCmd checks the config file and every agent definition without
// starting MCP servers or contacting the model.
type ValidateCmd struct {
	Format      string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved, secrets redacted)."`
}

type validationReport struct {
	Valid    bool     `json:"valid"`
	Agents   []string `json:"agents"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, cleanup, err := cli.load()
	if err != nil {
		return c.report(validationReport{Error: err.Error()})
	}
	defer cleanup()

	if c.PrintConfig {
		return printConfig(c.Format, cfg)
	}

	defs, err := config.LoadAgentsDir(cfg.AgentsDir)
	if err != nil {
		return c.report(validationReport{Error: err.Error()})
	}

	known := append(slices.Clone(builtin.CoreNames), builtin.ExtendedNames...)
	known = append(known, webtool.Name)
	rep := validationReport{Valid: true}
	for name, def := range defs {
		rep.Agents = append(rep.Agents, name)
		for _, t := range append(slices.Clone(def.Tools.Allowed), def.Tools.Denied...) {
			if !slices.Contains(known, t) {
				rep.Warnings = append(rep.Warnings,
					fmt.Sprintf("agent %s: tool %q is not built in (fine if an MCP server provides it)", name, t))
			}
			if !cfg.Tools.Extended && slices.Contains(builtin.ExtendedNames, t) && slices.Contains(def.Tools.Allowed, t) {
				rep.Warnings = append(rep.Warnings,
					fmt.Sprintf("agent %s: tool %q requires tools.extended", name, t))
			}
			if !cfg.Tools.Web.Enabled && t == webtool.Name && slices.Contains(def.Tools.Allowed, t) {
				rep.Warnings = append(rep.Warnings,
					fmt.Sprintf("agent %s: tool %q requires tools.web.enabled", name, t))
			}
		}
	}
	slices.Sort(rep.Agents)
	slices.Sort(rep.Warnings)
	return c.report(rep)
}

func (c *ValidateCmd) report(rep validationReport) error {
	if c.Format == "json" {
		if err := printJSON(os.Stdout, rep); err != nil {
			return err
		}
	} else if rep.Error == "" {
		fmt.Printf("Configuration valid (%d agents)\n", len(rep.Agents))
		for _, w := range rep.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if rep.Error != "" {
		return &ExitError{Code: 1, Err: fmt.Errorf("validation failed: %s", rep.Error)}
	}
	return nil
}

func printConfig(format string, cfg *config.Config) error {
	redacted := *cfg
	if redacted.LLM.APIKey != "" {
		redacted.LLM.APIKey = "[REDACTED]"
	}

	if format == "json" {
		data, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(redacted)
}
