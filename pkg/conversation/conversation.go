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

// Package conversation holds the message history of an agent session and
// the policy that keeps it within a size budget.
//
// Sizes are measured in characters (bytes of UTF-8 text). Truncation evicts
// whole messages from the front of the history and never touches the system
// prompt.
package conversation

import "strings"

// charsPerToken is the ratio used to turn a token budget into a character
// budget.
const charsPerToken = 4

// Conversation is an ordered message history with an optional system prompt.
// It is owned by a single agent run and is not safe for concurrent use.
type Conversation struct {
	SystemPrompt string
	messages     []Message
}

func New() *Conversation {
	return &Conversation{}
}

func WithSystemPrompt(prompt string) *Conversation {
	return &Conversation{SystemPrompt: prompt}
}

func (c *Conversation) AddMessage(m Message) {
	c.messages = append(c.messages, m)
}

func (c *Conversation) AddUserMessage(text string) {
	c.AddMessage(UserMessage(text))
}

func (c *Conversation) AddAssistantMessage(text string) {
	c.AddMessage(AssistantMessage(text))
}

// AppendSystemPrompt adds text to the end of the system prompt, separated by
// a blank line.
func (c *Conversation) AppendSystemPrompt(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = text
		return
	}
	c.SystemPrompt += "\n\n" + text
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

func (c *Conversation) Clear() {
	c.messages = nil
}

func (c *Conversation) messagesChars() int {
	total := 0
	for _, m := range c.messages {
		total += m.CharCount()
	}
	return total
}

// TotalChars is the system prompt length plus the size of every message.
func (c *Conversation) TotalChars() int {
	return len(c.SystemPrompt) + c.messagesChars()
}

// EstimateTokens is a rough token count derived from TotalChars.
func (c *Conversation) EstimateTokens() int {
	return c.TotalChars() / charsPerToken
}

// TruncateToLimit drops the oldest messages until the conversation fits in
// maxChars, or until no messages remain. It returns the number removed.
func (c *Conversation) TruncateToLimit(maxChars int) int {
	systemChars := len(c.SystemPrompt)
	running := c.messagesChars()
	if running+systemChars <= maxChars {
		return 0
	}

	budget := maxChars - systemChars
	removed := 0
	for len(c.messages) > 0 && running > budget {
		running -= c.messages[0].CharCount()
		c.messages[0] = Message{}
		c.messages = c.messages[1:]
		removed++
	}
	return removed
}

// TruncateToTokens applies TruncateToLimit with a budget of maxTokens*4
// characters.
func (c *Conversation) TruncateToTokens(maxTokens int) int {
	return c.TruncateToLimit(maxTokens * charsPerToken)
}

// TrimToValidStart drops leading messages until the history opens with a
// user message carrying no tool_result blocks, which the Messages API
// requires after truncation has split a tool_use from its results. The newest
// message is never dropped: if it is reached, its tool_result blocks are
// rewritten as text. It returns the number of messages dropped.
func (c *Conversation) TrimToValidStart() int {
	dropped := 0
	for len(c.messages) > 1 && !c.messages[0].opensHistory() {
		c.messages[0] = Message{}
		c.messages = c.messages[1:]
		dropped++
	}
	if len(c.messages) == 1 && c.messages[0].Role == RoleUser {
		c.messages[0] = c.messages[0].withResultsAsText()
	}
	return dropped
}
