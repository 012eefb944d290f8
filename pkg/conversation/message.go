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

package conversation

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates ContentBlock variants.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// toolUseCharEstimate is the fixed size a tool_use block contributes to
// TotalChars, whatever its input.
const toolUseCharEstimate = 50

// ContentBlock is one element of structured message content. Only the fields
// belonging to Type are meaningful.
type ContentBlock struct {
	Type BlockType

	// text
	Text string

	// tool_use
	ID    string
	Name  string
	Input json.RawMessage

	// tool_result
	ToolUseID string
	Content   string
	IsError   bool
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// CharCount is the block's contribution to the conversation size.
func (b ContentBlock) CharCount() int {
	switch b.Type {
	case BlockText:
		return len(b.Text)
	case BlockToolUse:
		return toolUseCharEstimate
	case BlockToolResult:
		return len(b.Content)
	default:
		return 0
	}
}

type textBlockJSON struct {
	Type BlockType `json:"type"`
	Text string    `json:"text"`
}

type toolUseBlockJSON struct {
	Type  BlockType       `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type toolResultBlockJSON struct {
	Type      BlockType `json:"type"`
	ToolUseID string    `json:"tool_use_id"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error,omitempty"`
}

// MarshalJSON encodes the block in Messages API form.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(textBlockJSON{Type: b.Type, Text: b.Text})
	case BlockToolUse:
		input := b.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return json.Marshal(toolUseBlockJSON{Type: b.Type, ID: b.ID, Name: b.Name, Input: input})
	case BlockToolResult:
		return json.Marshal(toolResultBlockJSON{Type: b.Type, ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError})
	default:
		return nil, fmt.Errorf("unknown content block type %q", b.Type)
	}
}

// UnmarshalJSON decodes a Messages API content block. Unknown block types
// are kept with only their type set.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      BlockType       `json:"type"`
		Text      string          `json:"text"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Input     json.RawMessage `json:"input"`
		ToolUseID string          `json:"tool_use_id"`
		Content   json.RawMessage `json:"content"`
		IsError   bool            `json:"is_error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = ContentBlock{
		Type:      raw.Type,
		Text:      raw.Text,
		ID:        raw.ID,
		Name:      raw.Name,
		Input:     raw.Input,
		ToolUseID: raw.ToolUseID,
		IsError:   raw.IsError,
	}

	if len(raw.Content) > 0 {
		var s string
		if err := json.Unmarshal(raw.Content, &s); err == nil {
			b.Content = s
		} else {
			b.Content = string(raw.Content)
		}
	}
	return nil
}

// Message is a single conversation entry. A message with nil Blocks carries
// plain Text.
type Message struct {
	Role   Role
	Text   string
	Blocks []ContentBlock
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

func UserBlocks(blocks []ContentBlock) Message {
	return Message{Role: RoleUser, Blocks: blocks}
}

func AssistantBlocks(blocks []ContentBlock) Message {
	return Message{Role: RoleAssistant, Blocks: blocks}
}

// HasBlocks reports whether the message carries structured content.
func (m Message) HasBlocks() bool {
	return m.Blocks != nil
}

func (m Message) CharCount() int {
	if !m.HasBlocks() {
		return len(m.Text)
	}
	total := 0
	for _, b := range m.Blocks {
		total += b.CharCount()
	}
	return total
}

// opensHistory reports whether m can be the first message of a request.
func (m Message) opensHistory() bool {
	if m.Role != RoleUser {
		return false
	}
	for _, b := range m.Blocks {
		if b.Type == BlockToolResult {
			return false
		}
	}
	return true
}

// withResultsAsText returns a copy of m with every tool_result block replaced
// by a text block holding its content.
func (m Message) withResultsAsText() Message {
	if m.opensHistory() {
		return m
	}
	blocks := make([]ContentBlock, len(m.Blocks))
	for i, b := range m.Blocks {
		if b.Type != BlockToolResult {
			blocks[i] = b
			continue
		}
		text := b.Content
		if text == "" {
			text = "(no output)"
		}
		blocks[i] = TextBlock(text)
	}
	return Message{Role: m.Role, Blocks: blocks}
}

// MarshalJSON encodes the message with string content for text messages
// and a block array otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	if !m.HasBlocks() {
		return json.Marshal(struct {
			Role    Role   `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Text})
	}
	return json.Marshal(struct {
		Role    Role           `json:"role"`
		Content []ContentBlock `json:"content"`
	}{m.Role, m.Blocks})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Text = ""
	m.Blocks = nil

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Text = text
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw.Content, &blocks); err != nil {
		return fmt.Errorf("message content is neither text nor blocks: %w", err)
	}
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	m.Blocks = blocks
	return nil
}
