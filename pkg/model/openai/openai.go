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

// Package openai adapts any OpenAI-compatible chat completions endpoint
// (Ollama, vLLM, OpenAI) to reasoning.ChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/reasoning"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

// Defaults for a local Ollama endpoint.
const (
	DefaultBaseURL = "http://host.docker.internal:11434/v1"
	DefaultAPIKey  = "dummy"
)

// Config configures a Model.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature *float64
	MaxTokens   int

	// HTTPClient overrides the transport, e.g. to propagate trace context.
	HTTPClient *http.Client
}

// Model is a reasoning.ChatModel backed by go-openai.
type Model struct {
	client *goopenai.Client
	cfg    Config
}

var _ reasoning.ChatModel = (*Model)(nil)

// New creates a Model.
func New(cfg Config) (*Model, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Model{client: goopenai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Name implements reasoning.ChatModel.
func (m *Model) Name() string { return m.cfg.Model }

// Chat implements reasoning.ChatModel.
func (m *Model) Chat(ctx context.Context, req *reasoning.Request) (*reasoning.Response, error) {
	creq := goopenai.ChatCompletionRequest{
		Model:     m.cfg.Model,
		Messages:  toOpenAIMessages(req.SystemPrompt, req.Messages),
		MaxTokens: m.cfg.MaxTokens,
		Tools:     toOpenAITools(req.Tools),
	}
	// go-openai omits a zero temperature, so 0 is sent as the smallest
	// positive float instead.
	if m.cfg.Temperature != nil {
		creq.Temperature = float32(*m.cfg.Temperature)
		if creq.Temperature == 0 {
			creq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := m.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := &reasoning.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: reasoning.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, tool.Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toOpenAIMessages(systemPrompt string, msgs []conversation.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, m := range msgs {
		switch {
		case m.IsToolCall():
			call := goopenai.ToolCall{
				ID:   m.ToolCall.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      m.ToolCall.Name,
					Arguments: argumentsOrEmpty(m.ToolCall.Arguments),
				},
			}
			// Consecutive calls of one round share a single assistant turn.
			if n := len(out); n > 0 && out[n-1].Role == goopenai.ChatMessageRoleAssistant && len(out[n-1].ToolCalls) > 0 && m.Content == "" {
				out[n-1].ToolCalls = append(out[n-1].ToolCalls, call)
				continue
			}
			out = append(out, goopenai.ChatCompletionMessage{
				Role:      goopenai.ChatMessageRoleAssistant,
				Content:   m.Content,
				ToolCalls: []goopenai.ToolCall{call},
			})

		case m.Role == conversation.RoleTool:
			id := ""
			if m.ToolResult != nil {
				id = m.ToolResult.CallID
			}
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: id,
			})

		default:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}
	return out
}

func toOpenAITools(specs []tool.Spec) []goopenai.Tool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, len(specs))
	for i, s := range specs {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func argumentsOrEmpty(args string) string {
	if args == "" {
		return "{}"
	}
	return args
}
