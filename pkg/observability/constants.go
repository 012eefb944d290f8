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

package observability

const (
	AttrAgentName       = "agent.name"
	AttrRunID           = "agent.run_id"
	AttrTurn            = "agent.turn"
	AttrToolName        = "tool.name"
	AttrToolUseID       = "tool.use_id"
	AttrHookType        = "hook.type"
	AttrHookScript      = "hook.script"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrHTTPMethod      = "http.method"
	AttrHTTPRoute       = "http.route"
	AttrHTTPStatusCode  = "http.status_code"

	SpanAgentRun      = "agent.run"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanHook          = "agent.hook"
	SpanHTTPRequest   = "http.request"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	DefaultServiceName  = "forge"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
