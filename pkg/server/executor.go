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

// Package server exposes an agent over the A2A protocol.
//
// The executor translates one A2A request into one reasoning turn keyed by
// the request's context id:
//
//	submitted (new tasks only) -> working -> artifact -> input-required
//	                                      -> artifact -> failed
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/evaline-ju/agent-examples/pkg/reasoning"
)

// ApologyText is the reply sent for every failed turn.
const ApologyText = "Sorry, something went wrong. Please try again."

// ErrCancelNotSupported is returned by Executor.Cancel.
var ErrCancelNotSupported = errors.New("cancel not supported")

// TurnRunner runs one conversational turn.
type TurnRunner interface {
	Run(ctx context.Context, conversationID, text string) reasoning.Outcome
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	AgentName   string
	WorkingText string
	Runner      TurnRunner
}

// Executor implements a2asrv.AgentExecutor.
type Executor struct {
	cfg ExecutorConfig
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)

// eventWriter is the subset of eventqueue.Queue the executor needs.
type eventWriter interface {
	Write(ctx context.Context, event a2a.Event) error
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner is required")
	}
	return &Executor{cfg: cfg}, nil
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.execute(ctx, reqCtx, queue)
}

func (e *Executor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext, w eventWriter) error {
	msg := reqCtx.Message
	if msg == nil {
		return errors.New("message not provided")
	}

	if reqCtx.StoredTask == nil {
		if err := w.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	text := userText(msg)
	slog.Info("Agent received message",
		"agent", e.cfg.AgentName,
		"context", reqCtx.ContextID,
		"task", string(reqCtx.TaskID),
		"input", text)

	working := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking,
		a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: e.cfg.WorkingText}))
	if err := w.Write(ctx, working); err != nil {
		return fmt.Errorf("failed to write working event: %w", err)
	}

	switch out := e.cfg.Runner.Run(ctx, reqCtx.ContextID, text).(type) {
	case reasoning.Final:
		if err := writeArtifact(ctx, w, reqCtx, out.Text); err != nil {
			return err
		}
		status := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateInputRequired,
			a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: out.Text}))
		status.Final = true
		return w.Write(ctx, status)

	case *reasoning.Failed:
		slog.Error("Agent turn failed",
			"agent", e.cfg.AgentName,
			"context", reqCtx.ContextID,
			"kind", out.Kind,
			"error", out.Error())
		if err := writeArtifact(ctx, w, reqCtx, ApologyText); err != nil {
			return err
		}
		status := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, nil)
		status.Final = true
		return w.Write(ctx, status)

	default:
		return fmt.Errorf("unexpected turn outcome %T", out)
	}
}

// Cancel implements a2asrv.AgentExecutor.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return ErrCancelNotSupported
}

func writeArtifact(ctx context.Context, w eventWriter, reqCtx *a2asrv.RequestContext, text string) error {
	ev := a2a.NewArtifactEvent(reqCtx, a2a.TextPart{Text: text})
	ev.LastChunk = true
	if err := w.Write(ctx, ev); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// userText joins the text parts of msg.
func userText(msg *a2a.Message) string {
	var texts []string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			texts = append(texts, p.Text)
		case *a2a.TextPart:
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
