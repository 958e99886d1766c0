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

// Package observability provides OpenTelemetry tracing and Prometheus metrics
// for the agent services.
//
// # Spans
//
// A turn produces the following tree:
//
//	agent.turn
//	  ├── gen_ai.chat                    (one per model call)
//	  ├── gen_ai.tool (get_weather)      (one per tool round)
//	  │     └── outbound MCP HTTP calls  (traceparent propagated)
//	  └── gen_ai.chat
//
// # Configuration
//
//	observability:
//	  tracing:
//	    enabled: true
//	    exporter: otlp
//	    endpoint: localhost:4317
//	  metrics:
//	    enabled: true
//	    endpoint: /metrics
package observability

// =============================================================================
// GenAI Semantic Conventions
// =============================================================================

const (
	// AttrGenAISystem identifies the GenAI system (e.g., "openai").
	AttrGenAISystem = "gen_ai.system"

	// AttrGenAIOperationName is the operation being performed.
	// Values: "chat", "execute_tool"
	AttrGenAIOperationName = "gen_ai.operation.name"

	// AttrGenAIRequestModel is the name of the model being used.
	AttrGenAIRequestModel = "gen_ai.request.model"

	// AttrGenAIResponseFinishReason is why generation stopped.
	AttrGenAIResponseFinishReason = "gen_ai.response.finish_reason"

	// AttrGenAIUsageInputTokens is the number of input tokens.
	AttrGenAIUsageInputTokens = "gen_ai.usage.input_tokens"

	// AttrGenAIUsageOutputTokens is the number of output tokens.
	AttrGenAIUsageOutputTokens = "gen_ai.usage.output_tokens"

	// AttrGenAIToolName is the comma-joined list of tools in a round.
	AttrGenAIToolName = "gen_ai.tool.name"

	// AttrGenAIConversationID is the conversation the span belongs to.
	AttrGenAIConversationID = "gen_ai.conversation.id"
)

const (
	// OpChat is the operation name for model calls.
	OpChat = "chat"

	// OpToolCall is the operation name for tool rounds.
	OpToolCall = "execute_tool"

	// SystemOpenAI identifies OpenAI-compatible chat endpoints.
	SystemOpenAI = "openai"
)

// =============================================================================
// Agent Attributes
// =============================================================================

const (
	// AttrAgentName is the name of the agent profile serving the turn.
	AttrAgentName = "agent.name"

	// AttrAgentRounds is the number of model rounds a turn used.
	AttrAgentRounds = "agent.rounds"

	// AttrAgentOutcome is the outcome kind of a turn.
	AttrAgentOutcome = "agent.outcome"
)

// =============================================================================
// HTTP / Error Attributes
// =============================================================================

const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	// AttrErrorType is the type of error that occurred.
	AttrErrorType = "error.type"

	// AttrErrorMessage is the error message.
	AttrErrorMessage = "error.message"
)

// =============================================================================
// Span Names
// =============================================================================

const (
	SpanTurn     = "agent.turn"
	SpanChat     = "gen_ai.chat"
	SpanTool     = "gen_ai.tool"
	SpanHTTP     = "http.request"
	InstrumentID = "github.com/evaline-ju/agent-examples"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultServiceName  = "agent-examples"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
	DefaultSamplingRate = 1.0
)
