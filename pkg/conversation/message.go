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

import "github.com/evaline-ju/agent-examples/pkg/tool"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a transcript.
//
// An assistant message either carries text Content or a single ToolCall.
// The first call of a round may also keep any text the model produced next
// to its tool calls. A tool message always carries a ToolResult.
type Message struct {
	Role       Role         `json:"role"`
	Content    string       `json:"content,omitempty"`
	ToolCall   *tool.Call   `json:"tool_call,omitempty"`
	ToolResult *tool.Result `json:"tool_result,omitempty"`
}

// UserMessage creates a user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates a final assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolCallMessage creates the assistant message that requests call.
func ToolCallMessage(call tool.Call) Message {
	c := call
	return Message{Role: RoleAssistant, ToolCall: &c}
}

// ToolResultMessage creates the tool message answering a call.
func ToolResultMessage(result tool.Result) Message {
	r := result
	return Message{Role: RoleTool, Content: r.Content, ToolResult: &r}
}

// IsToolCall reports whether m is an assistant tool request.
func (m Message) IsToolCall() bool {
	return m.Role == RoleAssistant && m.ToolCall != nil
}
