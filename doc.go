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

// Package forge runs configured AI agents against the Anthropic Messages API.
//
// An agent is a TOML file naming a model, a system prompt, a tool policy and
// a turn limit. The executor drives the turn loop: it sends the
// conversation to the model, dispatches any tool calls through the
// permission-filtered catalog, feeds results back, and stops when the model
// answers without tools or the turn limit is reached.
//
// # Quick Start
//
//	go install github.com/kadirpekel/forge/cmd/forge@latest
//
// Create agents/reviewer.toml:
//
//	[agent]
//	name = "reviewer"
//	model = "sonnet"
//
//	[agent.system_prompt]
//	role = "You are a careful code reviewer."
//	instructions = "Read the files you are pointed at and report bugs."
//
//	[agent.tools]
//	allowed = ["read", "grep", "glob"]
//
//	[agent.behavior]
//	max_turns = 8
//
// Run it:
//
//	export ANTHROPIC_API_KEY=...
//	forge run reviewer "Review pkg/agent/loop.go"
//
// Or serve every agent over HTTP:
//
//	forge serve --config forge.yaml
//
// # Packages
//
//   - pkg/agent: definitions, run context, turn loop, executor
//   - pkg/conversation: messages, content blocks, truncation, token counting
//   - pkg/tool: tool interface, catalog, permission filter, dispatcher
//   - pkg/hooks: lifecycle hook scripts
//   - pkg/llms: Messages API client
//   - pkg/config: forge.yaml and agent definition loading
//   - pkg/server: HTTP API
//   - pkg/observability: tracing and metrics
package forge
