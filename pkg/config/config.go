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

// Package config loads the configuration of one agent service.
//
// Sources, lowest priority first:
//  1. Defaults (per agent profile where relevant)
//  2. YAML config file, with ${VAR} and ${VAR:-default} expansion
//  3. Environment variables (AGENT_NAME, LLM_MODEL, MCP_URL, ...)
//
// Example:
//
//	agent: weather
//	llm:
//	  model: qwen2.5:3b
//	  api_base: ${LLM_API_BASE:-http://localhost:11434/v1}
//	mcp:
//	  url: http://weather-tool:8000/mcp
//	loop:
//	  max_rounds: 5
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/evaline-ju/agent-examples/pkg/agents"
	"github.com/evaline-ju/agent-examples/pkg/model/openai"
	"github.com/evaline-ju/agent-examples/pkg/observability"
	"github.com/evaline-ju/agent-examples/pkg/reasoning"
	"github.com/evaline-ju/agent-examples/pkg/tool/mcptoolset"
)

// Defaults.
const (
	DefaultAgent         = agents.Cheerup
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 8000
	DefaultSweepInterval = time.Minute
)

// Config is the root configuration.
type Config struct {
	// Agent selects the profile to serve: cheerup, recipe, trivia or weather.
	// Default: cheerup
	Agent string `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"enum=cheerup,enum=recipe,enum=trivia,enum=weather"`

	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty"`
	MCP           MCPConfig           `yaml:"mcp,omitempty" json:"mcp,omitempty"`
	Server        ServerConfig        `yaml:"server,omitempty" json:"server,omitempty"`
	Loop          LoopConfig          `yaml:"loop,omitempty" json:"loop,omitempty"`
	Conversations ConversationsConfig `yaml:"conversations,omitempty" json:"conversations,omitempty"`
	Logger        LoggerConfig        `yaml:"logger,omitempty" json:"logger,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// LLMConfig configures the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	// Model is the model identifier. Default: the agent profile's model.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIBase is the endpoint base URL.
	// Default: "http://host.docker.internal:11434/v1"
	APIBase string `yaml:"api_base,omitempty" json:"api_base,omitempty"`

	// APIKey is sent as the bearer token. Default: "dummy"
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Temperature overrides the profile's sampling temperature.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2"`

	// MaxTokens caps the completion length. 0 leaves it to the server.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// MCPConfig configures the tool gateway. Only agents that use tools connect.
type MCPConfig struct {
	// URL is the gateway endpoint. Default: "http://localhost:8000/mcp"
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Transport is streamable_http (default), sse or stdio.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"enum=streamable_http,enum=sse,enum=stdio"`

	// Command, Args and Env launch the server for the stdio transport.
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Tools limits the exposed tools. Empty exposes all.
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// ServerConfig configures the A2A HTTP listener.
type ServerConfig struct {
	// Host is the bind address. Default: "0.0.0.0"
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the listen port. Default: 8000
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`

	// PublicURL overrides the URL advertised on the agent card.
	PublicURL string `yaml:"public_url,omitempty" json:"public_url,omitempty"`
}

// LoopConfig bounds the reasoning loop.
type LoopConfig struct {
	// MaxRounds caps model calls per turn. Default: 10
	MaxRounds int `yaml:"max_rounds,omitempty" json:"max_rounds,omitempty" jsonschema:"minimum=1"`

	// CallTimeout is the deadline of each model and tool call. Default: 60s
	CallTimeout time.Duration `yaml:"call_timeout,omitempty" json:"call_timeout,omitempty"`

	// ToolConcurrency bounds concurrent tool calls per round. Default: 4
	ToolConcurrency int `yaml:"tool_concurrency,omitempty" json:"tool_concurrency,omitempty" jsonschema:"minimum=1"`
}

// ConversationsConfig configures transcript retention.
type ConversationsConfig struct {
	// MaxMessages keeps at most this many messages. 0 is unlimited.
	MaxMessages int `yaml:"max_messages,omitempty" json:"max_messages,omitempty" jsonschema:"minimum=0"`

	// MaxTokens keeps the transcript under this token budget. 0 is unlimited.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=0"`

	// MaxIdle evicts conversations idle for longer. 0 disables eviction.
	MaxIdle time.Duration `yaml:"max_idle,omitempty" json:"max_idle,omitempty"`

	// SweepInterval is how often idle conversations are evicted.
	// Default: 1m
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty" json:"sweep_interval,omitempty"`
}

// Profile returns the agent profile selected by Agent.
func (c *Config) Profile() (agents.Profile, error) {
	return agents.Lookup(c.Agent)
}

// SetDefaults applies default values. Model and temperature default to
// the selected profile's values.
func (c *Config) SetDefaults() {
	c.Agent = strings.ToLower(strings.TrimSpace(c.Agent))
	if c.Agent == "" {
		c.Agent = DefaultAgent
	}

	if profile, err := agents.Lookup(c.Agent); err == nil {
		if c.LLM.Model == "" {
			c.LLM.Model = profile.DefaultModel
		}
		if c.LLM.Temperature == nil && profile.DefaultTemperature != nil {
			t := *profile.DefaultTemperature
			c.LLM.Temperature = &t
		}
	}

	c.LLM.SetDefaults()
	c.MCP.SetDefaults()
	c.Server.SetDefaults()
	c.Loop.SetDefaults()
	c.Conversations.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the Config for errors.
func (c *Config) Validate() error {
	if _, err := agents.Lookup(c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.MCP.Validate(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Loop.Validate(); err != nil {
		return fmt.Errorf("loop: %w", err)
	}
	if err := c.Conversations.Validate(); err != nil {
		return fmt.Errorf("conversations: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// SetDefaults applies default values to LLMConfig.
func (c *LLMConfig) SetDefaults() {
	if c.APIBase == "" {
		c.APIBase = openai.DefaultBaseURL
	}
	if c.APIKey == "" {
		c.APIKey = openai.DefaultAPIKey
	}
}

// Validate checks the LLMConfig for errors.
func (c *LLMConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", *c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", c.MaxTokens)
	}
	return nil
}

// SetDefaults applies default values to MCPConfig.
func (c *MCPConfig) SetDefaults() {
	if kind, err := mcptoolset.NormalizeTransport(c.Transport); err == nil {
		c.Transport = kind
	}
	if c.URL == "" && c.Transport != mcptoolset.TransportStdio {
		c.URL = mcptoolset.DefaultURL
	}
}

// Validate checks the MCPConfig for errors.
func (c *MCPConfig) Validate() error {
	kind, err := mcptoolset.NormalizeTransport(c.Transport)
	if err != nil {
		return err
	}
	if kind == mcptoolset.TransportStdio && c.Command == "" {
		return fmt.Errorf("command is required for the stdio transport")
	}
	return nil
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
}

// Validate checks the ServerConfig for errors.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// SetDefaults applies default values to LoopConfig.
func (c *LoopConfig) SetDefaults() {
	if c.MaxRounds == 0 {
		c.MaxRounds = reasoning.DefaultMaxRounds
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = reasoning.DefaultCallTimeout
	}
	if c.ToolConcurrency == 0 {
		c.ToolConcurrency = reasoning.DefaultToolConcurrency
	}
}

// Validate checks the LoopConfig for errors.
func (c *LoopConfig) Validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", c.MaxRounds)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must be non-negative, got %s", c.CallTimeout)
	}
	if c.ToolConcurrency < 1 {
		return fmt.Errorf("tool_concurrency must be at least 1, got %d", c.ToolConcurrency)
	}
	return nil
}

// SetDefaults applies default values to ConversationsConfig.
func (c *ConversationsConfig) SetDefaults() {
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// Validate checks the ConversationsConfig for errors.
func (c *ConversationsConfig) Validate() error {
	if c.MaxMessages < 0 {
		return fmt.Errorf("max_messages must be non-negative, got %d", c.MaxMessages)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", c.MaxTokens)
	}
	if c.MaxIdle < 0 {
		return fmt.Errorf("max_idle must be non-negative, got %s", c.MaxIdle)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	return nil
}
