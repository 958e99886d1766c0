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

// Package reasoning runs one agent turn: it alternates model calls and
// tool execution until the model answers with text.
//
// The turn state machine is
//
//	START -> MODEL_CALL -> (TOOLS_PENDING -> TOOL_EXEC -> MODEL_CALL)* -> DONE
//
// and any state may move to FAILED. A turn never executes more than
// MaxRounds model calls.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/observability"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

// Default loop settings.
const (
	DefaultMaxRounds       = 10
	DefaultCallTimeout     = 60 * time.Second
	DefaultToolConcurrency = 4

	logResponseLimit = 200
)

// Config configures a Loop.
type Config struct {
	// AgentName labels spans, metrics and logs.
	AgentName string

	// Model answers each round. Required.
	Model ChatModel

	// Store holds the transcripts. Required.
	Store *conversation.Store

	// Tools executes tool calls. Nil means calls are answered with an
	// error result.
	Tools tool.Executor

	// Tracer and Metrics are optional.
	Tracer  *observability.Tracer
	Metrics observability.Recorder

	// MaxRounds caps model calls per turn. Zero means DefaultMaxRounds.
	MaxRounds int

	// CallTimeout bounds each model and tool call. Zero means
	// DefaultCallTimeout; negative disables the bound.
	CallTimeout time.Duration

	// ToolConcurrency bounds parallel tool calls within a round. Zero
	// means DefaultToolConcurrency.
	ToolConcurrency int
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxRounds == 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.ToolConcurrency == 0 {
		c.ToolConcurrency = DefaultToolConcurrency
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Model == nil {
		return errors.New("model is required")
	}
	if c.Store == nil {
		return errors.New("conversation store is required")
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1, got %d", c.MaxRounds)
	}
	if c.ToolConcurrency < 1 {
		return fmt.Errorf("tool concurrency must be at least 1, got %d", c.ToolConcurrency)
	}
	return nil
}

// Loop drives turns for one agent. It is safe for concurrent use; turns on
// the same conversation id run one at a time.
type Loop struct {
	cfg     Config
	metrics observability.Recorder
}

// New creates a Loop.
func New(cfg Config) (*Loop, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reasoning config: %w", err)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Loop{cfg: cfg, metrics: metrics}, nil
}

// MaxRounds returns the effective round cap.
func (l *Loop) MaxRounds() int { return l.cfg.MaxRounds }

// TurnBudget is the longest a turn can take when every call runs to its
// deadline: one model call per round plus one tool wave for every round
// but the last. It is zero when calls are unbounded.
func (l *Loop) TurnBudget() time.Duration {
	if l.cfg.CallTimeout < 0 {
		return 0
	}
	calls := 2*l.cfg.MaxRounds - 1
	return time.Duration(calls) * l.cfg.CallTimeout
}

// Turn is the input to RunTurn.
type Turn struct {
	ConversationID string
	UserText       string
	SystemPrompt   string

	// Tools are the tool specs bound to every model call of the turn.
	// When nil they are listed from the configured executor.
	Tools []tool.Spec
}

// RunTurn appends the user's message to the conversation, runs the loop
// to completion and returns its outcome. Messages appended before a
// failure stay in the transcript.
func (l *Loop) RunTurn(ctx context.Context, turn Turn) Outcome {
	start := time.Now()

	ctx, span := l.cfg.Tracer.StartTurn(ctx, l.cfg.AgentName, turn.ConversationID)
	defer span.End()

	outcome, rounds := l.run(ctx, turn)

	span.SetAttributes(
		attribute.Int(observability.AttrAgentRounds, rounds),
		attribute.String(observability.AttrAgentOutcome, outcome.Label()),
	)
	if f, ok := outcome.(*Failed); ok {
		l.cfg.Tracer.RecordError(span, f)
		slog.Warn("Turn failed",
			"agent", l.cfg.AgentName,
			"context", turn.ConversationID,
			"kind", f.Kind,
			"rounds", rounds,
			"error", f.Error())
	}
	l.metrics.RecordTurn(ctx, l.cfg.AgentName, outcome.Label(), time.Since(start))

	return outcome
}

func (l *Loop) run(ctx context.Context, turn Turn) (Outcome, int) {
	id := turn.ConversationID
	if id == "" {
		return fail(FailureInvalidInput, "conversation id is required", conversation.ErrEmptyConversationID), 0
	}

	if turn.Tools == nil && l.cfg.Tools != nil {
		specs, err := l.cfg.Tools.Tools(ctx)
		if err != nil {
			return fail(classify(ctx, ctx, err), "listing tools", err), 0
		}
		turn.Tools = specs
	}

	release, err := l.cfg.Store.Acquire(ctx, id)
	if err != nil {
		return fail(classify(ctx, ctx, err), "waiting for conversation", err), 0
	}
	defer release()

	if err := l.cfg.Store.Append(id, conversation.UserMessage(turn.UserText)); err != nil {
		return fail(FailureInvalidInput, "appending user message", err), 0
	}

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return fail(classify(ctx, ctx, err), "turn interrupted", err), round - 1
		}

		resp, failed := l.callModel(ctx, turn, round)
		if failed != nil {
			return failed, round
		}

		if !resp.HasToolCalls() {
			if err := l.cfg.Store.Append(id, conversation.AssistantMessage(resp.Content)); err != nil {
				return fail(FailureInvalidInput, "appending answer", err), round
			}
			slog.Info("LLM response",
				"agent", l.cfg.AgentName,
				"context", id,
				"round", round,
				"response", truncate(resp.Content, logResponseLimit))
			return Final{Text: resp.Content}, round
		}

		if round >= l.cfg.MaxRounds {
			reason := fmt.Sprintf("reasoning loop safety limit exceeded (%d rounds)", l.cfg.MaxRounds)
			return fail(FailureUnboundedLoop, reason, ErrMaxRounds), round
		}

		if failed := l.runTools(ctx, turn, resp); failed != nil {
			return failed, round
		}
	}
}

// callModel performs the MODEL_CALL step of one round.
func (l *Loop) callModel(ctx context.Context, turn Turn, round int) (*Response, *Failed) {
	messages := l.cfg.Store.GetOrCreate(turn.ConversationID)

	count := len(messages)
	if turn.SystemPrompt != "" {
		count++
	}
	slog.Info(fmt.Sprintf("Sending %d messages to LLM for context %s", count, turn.ConversationID),
		"agent", l.cfg.AgentName,
		"round", round)

	model := l.cfg.Model.Name()
	spanCtx, span := l.cfg.Tracer.StartChat(ctx, model)
	defer span.End()

	callCtx, cancel := l.withCallTimeout(spanCtx)
	defer cancel()

	start := time.Now()
	resp, err := l.cfg.Model.Chat(callCtx, &Request{
		SystemPrompt: turn.SystemPrompt,
		Messages:     messages,
		Tools:        turn.Tools,
	})
	if err == nil && resp == nil {
		err = errors.New("model returned no response")
	}
	if err != nil {
		l.metrics.RecordModelCall(ctx, model, time.Since(start), 0, 0, err)
		l.cfg.Tracer.RecordError(span, err)
		return nil, fail(classify(ctx, callCtx, err), fmt.Sprintf("model call failed in round %d", round), err)
	}

	l.metrics.RecordModelCall(ctx, model, time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	l.cfg.Tracer.AddUsage(span, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	l.cfg.Tracer.AddFinishReason(span, resp.FinishReason)

	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].ID == "" {
			resp.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	return resp, nil
}

func (l *Loop) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.CallTimeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.cfg.CallTimeout)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

type noopRecorder struct{}

func (noopRecorder) RecordTurn(context.Context, string, string, time.Duration) {}

func (noopRecorder) RecordModelCall(context.Context, string, time.Duration, int, int, error) {}

func (noopRecorder) RecordToolCall(context.Context, string, time.Duration, error) {}

func (noopRecorder) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}
