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

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kadirpekel/forge/pkg/agent"
)

// DefaultWatchDebounce coalesces bursts of editor writes into one reload.
const DefaultWatchDebounce = 100 * time.Millisecond

// AgentWatcher reloads the agents directory when its TOML files change.
type AgentWatcher struct {
	dir      string
	debounce time.Duration
	onChange func(map[string]agent.Definition)
}

// NewAgentWatcher creates a watcher that calls onChange with the full set of
// definitions after each successful reload. Reloads that fail are logged and
// the previous set stays in effect.
func NewAgentWatcher(dir string, onChange func(map[string]agent.Definition)) *AgentWatcher {
	return &AgentWatcher{
		dir:      dir,
		debounce: DefaultWatchDebounce,
		onChange: onChange,
	}
}

// Run watches until ctx is done.
func (w *AgentWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	slog.Info("Watching agents directory", "dir", w.dir)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != agentFileExt {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("Agent file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			defs, err := LoadAgentsDir(w.dir)
			if err != nil {
				slog.Error("Failed to reload agents", "dir", w.dir, "error", err)
				continue
			}
			slog.Info("Reloaded agents", "count", len(defs))
			w.onChange(defs)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Agents watcher error", "error", err)
		}
	}
}
