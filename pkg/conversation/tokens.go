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
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding approximates Claude tokenization, which has no public
// tiktoken encoding.
const fallbackEncoding = "cl100k_base"

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TokenCounter counts tokens with a BPE encoding. Safe for concurrent use.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenCounter returns a counter for model, falling back to cl100k_base
// for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return len(text) / charsPerToken
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountConversation counts the system prompt and every message. Tool
// inputs are counted from their JSON encoding.
func (tc *TokenCounter) CountConversation(c *Conversation) int {
	total := tc.Count(c.SystemPrompt)
	for _, m := range c.messages {
		if !m.HasBlocks() {
			total += tc.Count(m.Text)
			continue
		}
		for _, b := range m.Blocks {
			switch b.Type {
			case BlockText:
				total += tc.Count(b.Text)
			case BlockToolUse:
				total += tc.Count(b.Name) + tc.Count(string(b.Input))
			case BlockToolResult:
				total += tc.Count(b.Content)
			}
		}
	}
	return total
}

func (tc *TokenCounter) Model() string {
	return tc.model
}
