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

package reasoning

import (
	"context"

	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

// ChatModel is a chat completion endpoint with optional tool binding.
type ChatModel interface {
	// Name returns the model identifier.
	Name() string

	// Chat sends the system prompt and transcript and returns one response.
	Chat(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single chat completion request.
type Request struct {
	SystemPrompt string
	Messages     []conversation.Message

	// Tools are bound to the request when non-empty.
	Tools []tool.Spec
}

// Response is the model's answer to a Request.
//
// A response with one or more ToolCalls requests another round; any
// Content alongside them does not end the turn.
type Response struct {
	Content      string
	ToolCalls    []tool.Call
	FinishReason string
	Usage        Usage
}

// HasToolCalls reports whether the response requests tool execution.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
