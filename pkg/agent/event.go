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

package agent

import (
	"encoding/json"

	"github.com/kadirpekel/forge/pkg/tool"
)

type EventType string

const (
	EventTextResponse EventType = "text_response"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
)

// Event is one entry of a run's append-only log.
type Event struct {
	Type EventType `json:"type"`

	// text_response
	Text string `json:"text,omitempty"`

	// tool_call
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func TextResponseEvent(text string) Event {
	return Event{Type: EventTextResponse, Text: text}
}

func ToolCallEvent(use tool.ToolUse) Event {
	return Event{Type: EventToolCall, ID: use.ID, Name: use.Name, Input: use.Input}
}

func ToolResultEvent(r tool.Result) Event {
	return Event{Type: EventToolResult, ToolUseID: r.ToolUseID, Content: r.Content, IsError: r.IsError()}
}

// EventHandler observes events as a run records them. Parallel runs call it
// concurrently.
type EventHandler func(agent string, ev Event)
