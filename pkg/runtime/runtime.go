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

// Package runtime builds and runs one agent service from its config.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	agentexamples "github.com/evaline-ju/agent-examples"
	"github.com/evaline-ju/agent-examples/pkg/agents"
	"github.com/evaline-ju/agent-examples/pkg/config"
	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/model/openai"
	"github.com/evaline-ju/agent-examples/pkg/observability"
	"github.com/evaline-ju/agent-examples/pkg/reasoning"
	"github.com/evaline-ju/agent-examples/pkg/server"
	"github.com/evaline-ju/agent-examples/pkg/tool"
	"github.com/evaline-ju/agent-examples/pkg/tool/mcptoolset"
)

const shutdownTimeout = 10 * time.Second

// Runtime owns the object graph of one agent service.
type Runtime struct {
	cfg     *config.Config
	profile agents.Profile

	tracer  *observability.Tracer
	metrics *observability.Metrics
	store   *conversation.Store
	toolset *mcptoolset.Toolset
	runner  *agents.Runner
	server  *server.Server
}

// Option configures New.
type Option func(*options)

type options struct {
	model reasoning.ChatModel
	tools tool.Executor
}

// WithModel replaces the OpenAI-compatible model.
func WithModel(m reasoning.ChatModel) Option {
	return func(o *options) { o.model = m }
}

// WithToolExecutor replaces the MCP toolset for agents that use tools.
func WithToolExecutor(e tool.Executor) Option {
	return func(o *options) { o.tools = e }
}

// New builds the runtime for cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{cfg: cfg, profile: profile}

	if err := rt.initObservability(ctx); err != nil {
		return nil, err
	}

	store, err := newStore(cfg)
	if err != nil {
		rt.closeQuietly()
		return nil, err
	}
	rt.store = store

	model := o.model
	if model == nil {
		model, err = openai.New(openai.Config{
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.APIBase,
			APIKey:      cfg.LLM.APIKey,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			HTTPClient:  observability.NewHTTPClient(),
		})
		if err != nil {
			rt.closeQuietly()
			return nil, fmt.Errorf("failed to create model: %w", err)
		}
	}

	var executor tool.Executor
	if profile.UsesTools {
		executor = o.tools
		if executor == nil {
			rt.toolset, err = mcptoolset.New(mcptoolset.Config{
				URL:       cfg.MCP.URL,
				Transport: cfg.MCP.Transport,
				Command:   cfg.MCP.Command,
				Args:      cfg.MCP.Args,
				Env:       cfg.MCP.Env,
				Filter:    cfg.MCP.Tools,
			})
			if err != nil {
				rt.closeQuietly()
				return nil, fmt.Errorf("failed to create MCP toolset: %w", err)
			}
			executor = rt.toolset
		}
	}

	loopCfg := reasoning.Config{
		AgentName:       profile.Name,
		Model:           model,
		Store:           store,
		Tools:           executor,
		Tracer:          rt.tracer,
		MaxRounds:       cfg.Loop.MaxRounds,
		CallTimeout:     cfg.Loop.CallTimeout,
		ToolConcurrency: cfg.Loop.ToolConcurrency,
	}
	if rt.metrics != nil {
		loopCfg.Metrics = rt.metrics
	}
	loop, err := reasoning.New(loopCfg)
	if err != nil {
		rt.closeQuietly()
		return nil, fmt.Errorf("failed to create reasoning loop: %w", err)
	}

	rt.runner, err = agents.NewRunner(profile, loop)
	if err != nil {
		rt.closeQuietly()
		return nil, err
	}

	exec, err := server.NewExecutor(server.ExecutorConfig{
		AgentName:   profile.Name,
		WorkingText: profile.WorkingText,
		Runner:      rt.runner,
	})
	if err != nil {
		rt.closeQuietly()
		return nil, err
	}

	srvCfg := server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		PublicURL:    cfg.Server.PublicURL,
		MetricsPath:  cfg.Observability.Metrics.Endpoint,
		WriteTimeout: server.WriteTimeoutFor(loop.TurnBudget()),
	}
	rt.server = server.New(srvCfg, server.NewAgentCard(profile, srvCfg.CardURL()), exec,
		server.WithTracer(rt.tracer),
		server.WithMetrics(rt.metrics),
	)

	slog.Info("Agent runtime ready",
		"agent", profile.Name,
		"model", model.Name(),
		"tools", profile.UsesTools,
		"max_rounds", loop.MaxRounds())
	return rt, nil
}

func (r *Runtime) initObservability(ctx context.Context) error {
	tracing := r.cfg.Observability.Tracing
	if tracing.ServiceVersion == "" {
		tracing.ServiceVersion = agentexamples.Version
	}
	tracer, err := observability.NewTracer(ctx, &tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	r.tracer = tracer

	metrics, err := observability.NewMetrics(r.cfg.Observability.Metrics)
	if err != nil {
		r.closeQuietly()
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	r.metrics = metrics
	return nil
}

func newStore(cfg *config.Config) (*conversation.Store, error) {
	var policies []conversation.RetentionPolicy
	if n := cfg.Conversations.MaxMessages; n > 0 {
		policies = append(policies, conversation.MaxMessages(n))
	}
	if n := cfg.Conversations.MaxTokens; n > 0 {
		counter, err := conversation.NewTiktokenCounter(cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create token counter: %w", err)
		}
		policies = append(policies, conversation.TokenBudget{Counter: counter, MaxTokens: n})
	}

	var opts []conversation.Option
	if len(policies) > 0 {
		opts = append(opts, conversation.WithRetention(conversation.Chain(policies...)))
	}
	if cfg.Conversations.MaxIdle > 0 {
		opts = append(opts, conversation.WithMaxIdle(cfg.Conversations.MaxIdle))
	}
	return conversation.NewStore(opts...), nil
}

// Profile returns the served agent profile.
func (r *Runtime) Profile() agents.Profile { return r.profile }

// Runner returns the turn runner.
func (r *Runtime) Runner() *agents.Runner { return r.runner }

// Store returns the conversation store.
func (r *Runtime) Store() *conversation.Store { return r.store }

// Server returns the HTTP server.
func (r *Runtime) Server() *server.Server { return r.server }

// Run serves until ctx is done, then releases every resource.
func (r *Runtime) Run(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go r.store.RunJanitor(janitorCtx, r.cfg.Conversations.SweepInterval)

	serveErr := r.server.Start(ctx)
	stopJanitor()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, r.Close(shutdownCtx))
}

// Close releases the toolset, metrics and tracer.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.toolset != nil {
		if err := r.toolset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp toolset: %w", err))
		}
	}
	if err := r.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	if err := r.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer: %w", err))
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		slog.Warn("Cleanup after failed start", "error", err)
	}
}
