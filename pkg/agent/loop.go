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
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/forge/pkg/conversation"
	"github.com/kadirpekel/forge/pkg/hooks"
	"github.com/kadirpekel/forge/pkg/llms"
	"github.com/kadirpekel/forge/pkg/tool"
)

// RunAgentLoop drives ac until the model answers without tool calls or the
// turn limit is reached. Each turn is one model call. Reaching the limit is
// not an error; the result reports it with MaxTurnsExceeded.
//
// A model client failure aborts the run immediately. A failing tool aborts
// it only when the agent has stop_on_error set.
func (e *Executor) RunAgentLoop(ctx context.Context, ac *Context) (*RunResult, error) {
	name := ac.AgentName()
	def := ac.Definition()
	filtered := tool.NewFilteredDispatcher(e.dispatcher, def.Tools.Allowed, def.Tools.Denied)
	tools := filtered.Filter().Definitions()

	exceeded := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
		if ac.IsMaxTurnsExceeded() {
			slog.Warn("Agent exceeded max turns", "agent", name, "max_turns", ac.MaxTurns())
			exceeded = true
			break
		}

		ac.IncrementTurn()
		slog.Debug("Agent turn", "agent", name, "turn", ac.Turns(), "max_turns", ac.MaxTurns())

		if e.contextLimit > 0 {
			e.truncate(ac)
		}

		req := llms.NewRequest(ac.Conversation, ac.Model(), e.maxTokens, tools)
		resp, err := e.client.SendMessage(ctx, req)
		if err != nil {
			return nil, &Error{Kind: ErrClient, Agent: name, Err: err}
		}
		ac.tokens += resp.Usage.Total()

		results, err := e.handleResponse(ctx, ac, filtered, resp)
		if err != nil {
			return nil, err
		}
		if results == nil {
			break
		}

		ac.Conversation.AddMessage(conversation.AssistantBlocks(resp.Content))
		blocks := make([]conversation.ContentBlock, len(results))
		for i, r := range results {
			blocks[i] = r.Block()
		}
		ac.Conversation.AddMessage(conversation.UserBlocks(blocks))
	}

	return e.result(ac, exceeded), nil
}

// truncate fits the conversation into the context limit while keeping the
// request valid: the newest message always survives and the history never
// opens with an assistant message or an orphaned tool result.
func (e *Executor) truncate(ac *Context) {
	conv := ac.Conversation
	if conv.Len() == 0 {
		return
	}
	newest := conv.Messages()[conv.Len()-1]

	removed := conv.TruncateToTokens(e.contextLimit)
	if removed == 0 {
		return
	}
	if conv.Len() == 0 {
		conv.AddMessage(newest)
		removed--
	}
	removed += conv.TrimToValidStart()
	slog.Debug("Truncated conversation", "agent", ac.AgentName(), "removed", removed, "remaining", conv.Len())
}

// handleResponse processes the response's blocks in order. It returns the
// tool results, or nil when the response contained no tool calls.
func (e *Executor) handleResponse(ctx context.Context, ac *Context, filtered *tool.FilteredDispatcher, resp *llms.Response) ([]tool.Result, error) {
	var results []tool.Result

	for _, block := range resp.Content {
		switch block.Type {
		case conversation.BlockText:
			ac.finalResponse = block.Text
			e.emit(ac, TextResponseEvent(block.Text))

		case conversation.BlockToolUse:
			use := tool.ToolUse{ID: block.ID, Name: block.Name, Input: block.Input}
			e.emit(ac, ToolCallEvent(use))

			result := e.callTool(ctx, ac, filtered, use)
			e.emit(ac, ToolResultEvent(result))

			if result.IsError() && ac.StopOnError() {
				return nil, &Error{
					Kind:   ErrStoppedOnError,
					Agent:  ac.AgentName(),
					Detail: result.Content,
					Events: ac.Events(),
				}
			}
			if results == nil {
				results = make([]tool.Result, 0, 1)
			}
			results = append(results, result)

		case conversation.BlockToolResult:
			slog.Warn("Unexpected tool result in model response", "agent", ac.AgentName(), "tool_use_id", block.ToolUseID)

		default:
			slog.Debug("Ignoring content block", "agent", ac.AgentName(), "type", block.Type)
		}
	}
	return results, nil
}

// callTool wraps one dispatch with the tool hooks. Hook failures are logged
// and never change the result.
func (e *Executor) callTool(ctx context.Context, ac *Context, filtered *tool.FilteredDispatcher, use tool.ToolUse) tool.Result {
	tc := hooks.ToolCallContext{ToolName: use.Name, ToolID: use.ID, Input: use.Input}

	if e.hooks != nil && e.hooks.HasHooks(hooks.BeforeToolCall) {
		results, err := e.hooks.ExecuteBeforeToolCall(ctx, tc)
		if err != nil {
			slog.Warn("BeforeToolCall hook failed", "agent", ac.AgentName(), "tool", use.Name, "error", err)
		}
		logUnsuccessful(ac, hooks.BeforeToolCall, results)
	}

	result := filtered.Dispatch(ctx, use)

	if e.hooks != nil && e.hooks.HasHooks(hooks.AfterToolCall) {
		results, err := e.hooks.ExecuteAfterToolCall(ctx, hooks.AfterToolCallContext{
			ToolCallContext: tc,
			Output:          result.Content,
			IsError:         result.IsError(),
		})
		if err != nil {
			slog.Warn("AfterToolCall hook failed", "agent", ac.AgentName(), "tool", use.Name, "error", err)
		}
		logUnsuccessful(ac, hooks.AfterToolCall, results)
	}
	return result
}

func (e *Executor) emit(ac *Context, ev Event) {
	ac.record(ev)
	if e.onEvent != nil {
		e.onEvent(ac.AgentName(), ev)
	}
}

func (e *Executor) result(ac *Context, exceeded bool) *RunResult {
	contextTokens := ac.Conversation.EstimateTokens()
	if e.tokenCounter != nil {
		contextTokens = e.tokenCounter.CountConversation(ac.Conversation)
	}
	return &RunResult{
		RunID:            ac.RunID,
		Agent:            ac.AgentName(),
		FinalResponse:    ac.FinalResponse(),
		Events:           ac.Events(),
		Turns:            ac.Turns(),
		MaxTurnsExceeded: exceeded,
		Tokens:           ac.Tokens(),
		ContextTokens:    contextTokens,
	}
}
