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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

// ErrUnknownTool is recorded when the model calls a tool that was not
// bound to the turn.
var ErrUnknownTool = errors.New("tool not found")

var errNoTools = errors.New("no tools are available")

type callOutcome struct {
	content string
	fatal   *Failed
}

// runTools performs TOOL_EXEC for one round. Calls run concurrently but
// their messages are appended in the order the model emitted them, each
// call immediately followed by its result. Ordinary tool errors become
// result text; deadlines and cancellation fail the turn.
func (l *Loop) runTools(ctx context.Context, turn Turn, resp *Response) *Failed {
	calls := resp.ToolCalls

	ctx, span := l.cfg.Tracer.StartToolRound(ctx, tool.Names(calls))
	defer span.End()

	results := make([]callOutcome, len(calls))

	var g errgroup.Group
	g.SetLimit(l.cfg.ToolConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = l.executeCall(ctx, turn.Tools, call)
			if results[i].fatal != nil {
				return results[i].fatal
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		l.cfg.Tracer.RecordError(span, err)
		var failed *Failed
		if errors.As(err, &failed) {
			return failed
		}
		return fail(FailureTransport, "tool round failed", err)
	}

	msgs := make([]conversation.Message, 0, 2*len(calls))
	for i, call := range calls {
		callMsg := conversation.ToolCallMessage(call)
		if i == 0 {
			callMsg.Content = resp.Content
		}
		msgs = append(msgs, callMsg, conversation.ToolResultMessage(tool.Result{
			CallID:  call.ID,
			Content: results[i].content,
		}))
	}
	if err := l.cfg.Store.Append(turn.ConversationID, msgs...); err != nil {
		return fail(FailureInvalidInput, "appending tool results", err)
	}
	return nil
}

func (l *Loop) executeCall(ctx context.Context, specs []tool.Spec, call tool.Call) callOutcome {
	if l.cfg.Tools == nil {
		return callOutcome{content: fmt.Sprintf("Error: %v", errNoTools)}
	}
	if _, ok := tool.Lookup(specs, call.Name); !ok {
		slog.Warn("Model requested unknown tool", "agent", l.cfg.AgentName, "tool", call.Name, "callID", call.ID)
		l.metrics.RecordToolCall(ctx, call.Name, 0, ErrUnknownTool)
		return callOutcome{content: fmt.Sprintf("Error: tool %q not found", call.Name)}
	}

	callCtx, cancel := l.withCallTimeout(ctx)
	defer cancel()

	slog.Debug("Executing tool", "agent", l.cfg.AgentName, "tool", call.Name, "callID", call.ID, "args", call.Arguments)

	start := time.Now()
	out, err := l.cfg.Tools.Execute(callCtx, call)
	l.metrics.RecordToolCall(ctx, call.Name, time.Since(start), err)

	if err == nil {
		slog.Debug("Tool execution completed", "tool", call.Name, "callID", call.ID)
		return callOutcome{content: out}
	}

	if kind := classify(ctx, callCtx, err); kind != FailureTransport {
		return callOutcome{fatal: fail(kind, fmt.Sprintf("tool %q did not complete", call.Name), err)}
	}

	slog.Warn("Tool execution failed", "tool", call.Name, "callID", call.ID, "error", err)
	return callOutcome{content: fmt.Sprintf("Error: %v", err)}
}
