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

package agent

import (
	"github.com/google/uuid"

	"github.com/kadirpekel/forge/pkg/conversation"
)

// Context is the state of one agent session: its definition, its own
// conversation and the number of model calls made so far. A Context is
// owned by a single run and is not safe for concurrent use.
type Context struct {
	RunID        string
	Conversation *conversation.Conversation

	def           Definition
	turns         int
	events        []Event
	finalResponse string
	tokens        int
}

// NewContext seeds a conversation with the definition's composed system
// prompt.
func NewContext(def Definition) *Context {
	def = def.clone()
	return &Context{
		RunID:        uuid.NewString(),
		Conversation: conversation.WithSystemPrompt(def.ComposedSystemPrompt()),
		def:          def,
	}
}

func (c *Context) Definition() Definition {
	return c.def.clone()
}

func (c *Context) AgentName() string {
	return c.def.Name
}

func (c *Context) AddUserMessage(text string) {
	c.Conversation.AddUserMessage(text)
}

// Model is the full model id, with aliases resolved.
func (c *Context) Model() string {
	return c.def.ResolvedModel()
}

func (c *Context) MaxTurns() int {
	return c.def.Behavior.MaxTurns
}

func (c *Context) StopOnError() bool {
	return c.def.Behavior.StopOnError
}

func (c *Context) Turns() int {
	return c.turns
}

func (c *Context) IncrementTurn() {
	c.turns++
}

func (c *Context) IsMaxTurnsExceeded() bool {
	return c.turns >= c.MaxTurns()
}

// Events returns a copy of the events recorded so far.
func (c *Context) Events() []Event {
	return append([]Event(nil), c.events...)
}

// FinalResponse is the text of the most recent text block the model sent.
func (c *Context) FinalResponse() string {
	return c.finalResponse
}

// Tokens is the total input and output tokens reported by the model.
func (c *Context) Tokens() int {
	return c.tokens
}

func (c *Context) record(ev Event) {
	c.events = append(c.events, ev)
}
