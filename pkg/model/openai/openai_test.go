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

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/reasoning"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

type fakeEndpoint struct {
	status   int
	response goopenai.ChatCompletionResponse
	got      goopenai.ChatCompletionRequest
	auth     string
	path     string
}

func (f *fakeEndpoint) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.path = r.URL.Path
		f.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.got))

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(f.response))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestNew_Defaults(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	m, err := New(Config{Model: "qwen2.5:3b"})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:3b", m.Name())
	assert.Equal(t, DefaultBaseURL, m.cfg.BaseURL)
	assert.Equal(t, DefaultAPIKey, m.cfg.APIKey)
}

func TestChat_TextAnswer(t *testing.T) {
	ep := &fakeEndpoint{response: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message:      goopenai.ChatCompletionMessage{Role: "assistant", Content: "Here's a joke!"},
			FinishReason: goopenai.FinishReasonStop,
		}},
		Usage: goopenai.Usage{PromptTokens: 42, CompletionTokens: 7},
	}}
	m, err := New(Config{Model: "qwen2.5:3b", BaseURL: ep.start(t), APIKey: "secret"})
	require.NoError(t, err)

	resp, err := m.Chat(context.Background(), &reasoning.Request{
		SystemPrompt: "You are cheerful.",
		Messages:     []conversation.Message{conversation.UserMessage("Make me laugh!")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Here's a joke!", resp.Content)
	assert.False(t, resp.HasToolCalls())
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, reasoning.Usage{InputTokens: 42, OutputTokens: 7}, resp.Usage)

	assert.Equal(t, "/v1/chat/completions", ep.path)
	assert.Equal(t, "Bearer secret", ep.auth)
	assert.Equal(t, "qwen2.5:3b", ep.got.Model)
	require.Len(t, ep.got.Messages, 2)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, ep.got.Messages[0].Role)
	assert.Equal(t, "You are cheerful.", ep.got.Messages[0].Content)
	assert.Equal(t, goopenai.ChatMessageRoleUser, ep.got.Messages[1].Role)
	assert.Empty(t, ep.got.Tools)
}

func TestChat_ToolCalls(t *testing.T) {
	ep := &fakeEndpoint{response: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{
				Role: "assistant",
				ToolCalls: []goopenai.ToolCall{{
					ID:       "call_9",
					Type:     goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{Name: "get_weather", Arguments: `{"city":"Boston"}`},
				}},
			},
			FinishReason: goopenai.FinishReasonToolCalls,
		}},
	}}
	m, err := New(Config{Model: "qwen2.5:3b", BaseURL: ep.start(t)})
	require.NoError(t, err)

	resp, err := m.Chat(context.Background(), &reasoning.Request{
		Messages: []conversation.Message{conversation.UserMessage("weather in Boston?")},
		Tools: []tool.Spec{{
			Name:        "get_weather",
			Description: "Get weather",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
			},
		}},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, tool.Call{ID: "call_9", Name: "get_weather", Arguments: `{"city":"Boston"}`}, resp.ToolCalls[0])

	require.Len(t, ep.got.Tools, 1)
	assert.Equal(t, goopenai.ToolTypeFunction, ep.got.Tools[0].Type)
	assert.Equal(t, "get_weather", ep.got.Tools[0].Function.Name)
}

func TestChat_ZeroTemperatureIsSent(t *testing.T) {
	ep := &fakeEndpoint{response: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{Message: goopenai.ChatCompletionMessage{Content: "ok"}}},
	}}
	zero := 0.0
	m, err := New(Config{Model: "qwen2.5:3b", BaseURL: ep.start(t), Temperature: &zero})
	require.NoError(t, err)

	_, err = m.Chat(context.Background(), &reasoning.Request{
		Messages: []conversation.Message{conversation.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Greater(t, ep.got.Temperature, float32(0))
	assert.Less(t, ep.got.Temperature, float32(1e-6))
}

func TestChat_ServerError(t *testing.T) {
	ep := &fakeEndpoint{status: http.StatusInternalServerError}
	m, err := New(Config{Model: "qwen2.5:3b", BaseURL: ep.start(t)})
	require.NoError(t, err)

	_, err = m.Chat(context.Background(), &reasoning.Request{
		Messages: []conversation.Message{conversation.UserMessage("hi")},
	})
	assert.Error(t, err)
}

func TestChat_NoChoices(t *testing.T) {
	ep := &fakeEndpoint{}
	m, err := New(Config{Model: "qwen2.5:3b", BaseURL: ep.start(t)})
	require.NoError(t, err)

	_, err = m.Chat(context.Background(), &reasoning.Request{
		Messages: []conversation.Message{conversation.UserMessage("hi")},
	})
	assert.Error(t, err)
}

func TestToOpenAIMessages_ToolRound(t *testing.T) {
	a := tool.Call{ID: "a1", Name: "get_weather", Arguments: `{"city":"Paris"}`}
	b := tool.Call{ID: "b1", Name: "get_forecast"}

	first := conversation.ToolCallMessage(a)
	first.Content = "checking"

	msgs := toOpenAIMessages("sys", []conversation.Message{
		conversation.UserMessage("weather and forecast in Paris?"),
		first,
		conversation.ToolResultMessage(tool.Result{CallID: "a1", Content: "22°C"}),
		conversation.ToolCallMessage(b),
		conversation.ToolResultMessage(tool.Result{CallID: "b1", Content: "sunny"}),
		conversation.AssistantMessage("It's 22°C and sunny."),
	})

	require.Len(t, msgs, 7)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, msgs[0].Role)

	assert.Equal(t, goopenai.ChatMessageRoleAssistant, msgs[2].Role)
	assert.Equal(t, "checking", msgs[2].Content)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "a1", msgs[2].ToolCalls[0].ID)

	assert.Equal(t, goopenai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "a1", msgs[3].ToolCallID)

	require.Len(t, msgs[4].ToolCalls, 1)
	assert.Equal(t, "{}", msgs[4].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "b1", msgs[5].ToolCallID)
	assert.Equal(t, "It's 22°C and sunny.", msgs[6].Content)
}

func TestToOpenAIMessages_MergesAdjacentCalls(t *testing.T) {
	msgs := toOpenAIMessages("", []conversation.Message{
		conversation.UserMessage("x"),
		conversation.ToolCallMessage(tool.Call{ID: "1", Name: "a"}),
		conversation.ToolCallMessage(tool.Call{ID: "2", Name: "b"}),
	})
	require.Len(t, msgs, 2)
	assert.Len(t, msgs[1].ToolCalls, 2)
}
