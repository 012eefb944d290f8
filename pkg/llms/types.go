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

// Package llms talks to the hosted language model over the Anthropic
// Messages API.
package llms

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kadirpekel/forge/pkg/conversation"
	"github.com/kadirpekel/forge/pkg/tool"
)

// Client sends one request and returns the model's reply. Implementations
// must be safe for concurrent use.
type Client interface {
	SendMessage(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ClientFunc) SendMessage(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

type Request struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	Messages  []conversation.Message `json:"messages"`
	System    string                 `json:"system,omitempty"`
	Tools     []tool.Definition      `json:"tools,omitempty"`
}

// NewRequest builds a request from the conversation's current state.
func NewRequest(conv *conversation.Conversation, model string, maxTokens int, tools []tool.Definition) *Request {
	return &Request{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  conv.Messages(),
		System:    conv.SystemPrompt,
		Tools:     tools,
	}
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

type Response struct {
	ID         string                      `json:"id"`
	Model      string                      `json:"model"`
	Content    []conversation.ContentBlock `json:"content"`
	StopReason string                      `json:"stop_reason,omitempty"`
	Usage      Usage                       `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiErrorMessage pulls the message out of an error body, falling back to
// the raw text.
func apiErrorMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Type + ": " + parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}
