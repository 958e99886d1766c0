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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/evaline-ju/agent-examples/pkg/conversation"
	"github.com/evaline-ju/agent-examples/pkg/observability"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

type step func(ctx context.Context, req *Request) (*Response, error)

// scriptedModel answers each call with the next step. When the script is
// exhausted it repeats fallback, or fails if fallback is nil.
type scriptedModel struct {
	mu       sync.Mutex
	steps    []step
	fallback step
	requests []*Request
}

func (m *scriptedModel) Name() string { return "test-model" }

func (m *scriptedModel) Chat(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if i < len(m.steps) {
		return m.steps[i](ctx, req)
	}
	if m.fallback != nil {
		return m.fallback(ctx, req)
	}
	return nil, errors.New("unexpected model call")
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func answer(text string) step {
	return func(context.Context, *Request) (*Response, error) {
		return &Response{Content: text, FinishReason: "stop", Usage: Usage{InputTokens: 10, OutputTokens: 5}}, nil
	}
}

func callTools(calls ...tool.Call) step {
	return func(context.Context, *Request) (*Response, error) {
		return &Response{ToolCalls: calls, FinishReason: "tool_calls"}, nil
	}
}

type handler func(ctx context.Context, call tool.Call) (string, error)

type fakeTools struct {
	mu       sync.Mutex
	handlers map[string]handler
	executed []string
	listErr  error
}

func (f *fakeTools) Tools(context.Context) ([]tool.Spec, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	specs := make([]tool.Spec, 0, len(f.handlers))
	for name := range f.handlers {
		specs = append(specs, tool.Spec{Name: name})
	}
	return specs, nil
}

func (f *fakeTools) Execute(ctx context.Context, call tool.Call) (string, error) {
	f.mu.Lock()
	f.executed = append(f.executed, call.Name)
	h := f.handlers[call.Name]
	f.mu.Unlock()
	return h(ctx, call)
}

func (f *fakeTools) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func specs(names ...string) []tool.Spec {
	out := make([]tool.Spec, len(names))
	for i, n := range names {
		out[i] = tool.Spec{Name: n, Description: n + " tool"}
	}
	return out
}

func echo(result string) handler {
	return func(context.Context, tool.Call) (string, error) { return result, nil }
}

func newLoop(t *testing.T, model ChatModel, tools tool.Executor, mutate ...func(*Config)) (*Loop, *conversation.Store) {
	t.Helper()
	store := conversation.NewStore()
	cfg := Config{AgentName: "test", Model: model, Store: store, Tools: tools}
	for _, m := range mutate {
		m(&cfg)
	}
	loop, err := New(cfg)
	require.NoError(t, err)
	return loop, store
}

func requireFinal(t *testing.T, o Outcome) Final {
	t.Helper()
	f, ok := o.(Final)
	require.True(t, ok, "expected Final, got %#v", o)
	return f
}

func requireFailed(t *testing.T, o Outcome, kind FailureKind) *Failed {
	t.Helper()
	f, ok := o.(*Failed)
	require.True(t, ok, "expected *Failed, got %#v", o)
	assert.Equal(t, kind, f.Kind)
	return f
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Store: conversation.NewStore()})
	assert.Error(t, err)

	_, err = New(Config{Model: &scriptedModel{}})
	assert.Error(t, err)

	_, err = New(Config{Model: &scriptedModel{}, Store: conversation.NewStore(), MaxRounds: -1})
	assert.Error(t, err)

	loop, err := New(Config{Model: &scriptedModel{}, Store: conversation.NewStore()})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRounds, loop.MaxRounds())
}

func TestLoop_TurnBudget(t *testing.T) {
	tests := []struct {
		name        string
		maxRounds   int
		callTimeout time.Duration
		want        time.Duration
	}{
		{name: "defaults", want: 19 * DefaultCallTimeout},
		{name: "single round", maxRounds: 1, callTimeout: 5 * time.Second, want: 5 * time.Second},
		{name: "three rounds", maxRounds: 3, callTimeout: 10 * time.Second, want: 50 * time.Second},
		{name: "unbounded calls", maxRounds: 3, callTimeout: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop, err := New(Config{
				Model:       &scriptedModel{},
				Store:       conversation.NewStore(),
				MaxRounds:   tt.maxRounds,
				CallTimeout: tt.callTimeout,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, loop.TurnBudget())
		})
	}
}

func TestRunTurn_DirectAnswer(t *testing.T) {
	model := &scriptedModel{steps: []step{answer("Hello there!")}}
	loop, store := newLoop(t, model, nil)

	out := loop.RunTurn(context.Background(), Turn{
		ConversationID: "c1",
		UserText:       "hi",
		SystemPrompt:   "be nice",
	})

	assert.Equal(t, "Hello there!", requireFinal(t, out).Text)
	assert.Equal(t, []conversation.Message{
		conversation.UserMessage("hi"),
		conversation.AssistantMessage("Hello there!"),
	}, store.GetOrCreate("c1"))

	require.Len(t, model.requests, 1)
	assert.Equal(t, "be nice", model.requests[0].SystemPrompt)
	assert.Equal(t, []conversation.Message{conversation.UserMessage("hi")}, model.requests[0].Messages)
}

func TestRunTurn_HistoryCarriesAcrossTurns(t *testing.T) {
	model := &scriptedModel{steps: []step{answer("first"), answer("second")}}
	loop, store := newLoop(t, model, nil)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "one"}))
	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "two"}))

	assert.Len(t, store.GetOrCreate("c1"), 4)
	assert.Len(t, model.requests[1].Messages, 3)
}

func TestRunTurn_SequentialTools(t *testing.T) {
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "1", Name: "a", Arguments: `{}`}),
		callTools(tool.Call{ID: "2", Name: "b", Arguments: `{}`}),
		answer("done"),
	}}
	tools := &fakeTools{handlers: map[string]handler{"a": echo("A"), "b": echo("B")}}
	loop, store := newLoop(t, model, tools)

	out := loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "go", Tools: specs("a", "b")})
	assert.Equal(t, "done", requireFinal(t, out).Text)

	msgs := store.GetOrCreate("c1")
	require.Len(t, msgs, 6)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "a", msgs[1].ToolCall.Name)
	assert.Equal(t, "A", msgs[2].Content)
	assert.Equal(t, "1", msgs[2].ToolResult.CallID)
	assert.Equal(t, "b", msgs[3].ToolCall.Name)
	assert.Equal(t, "B", msgs[4].Content)
	assert.Equal(t, conversation.AssistantMessage("done"), msgs[5])

	assert.Equal(t, 3, model.calls())
	assert.Equal(t, specs("a", "b"), model.requests[0].Tools)
}

func TestRunTurn_ToolCallsTakePriorityOverContent(t *testing.T) {
	model := &scriptedModel{steps: []step{
		func(context.Context, *Request) (*Response, error) {
			return &Response{
				Content:   "let me check",
				ToolCalls: []tool.Call{{ID: "1", Name: "a"}},
			}, nil
		},
		answer("checked"),
	}}
	tools := &fakeTools{handlers: map[string]handler{"a": echo("ok")}}
	loop, store := newLoop(t, model, tools)

	out := loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x", Tools: specs("a")})
	assert.Equal(t, "checked", requireFinal(t, out).Text)
	assert.Equal(t, 1, tools.count())

	msgs := store.GetOrCreate("c1")
	require.Len(t, msgs, 4)
	assert.True(t, msgs[1].IsToolCall())
	assert.Equal(t, "let me check", msgs[1].Content)
}

func TestRunTurn_PreservesEmissionOrder(t *testing.T) {
	bDone := make(chan struct{})
	var mu sync.Mutex
	var completed []string

	tools := &fakeTools{handlers: map[string]handler{
		"slow": func(ctx context.Context, _ tool.Call) (string, error) {
			<-bDone
			mu.Lock()
			completed = append(completed, "slow")
			mu.Unlock()
			return "slow result", nil
		},
		"fast": func(context.Context, tool.Call) (string, error) {
			mu.Lock()
			completed = append(completed, "fast")
			mu.Unlock()
			close(bDone)
			return "fast result", nil
		},
	}}
	model := &scriptedModel{steps: []step{
		callTools(
			tool.Call{ID: "s", Name: "slow"},
			tool.Call{ID: "f", Name: "fast"},
		),
		answer("both done"),
	}}
	loop, store := newLoop(t, model, tools)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x", Tools: specs("slow", "fast")}))
	assert.Equal(t, []string{"fast", "slow"}, completed)

	msgs := store.GetOrCreate("c1")
	require.Len(t, msgs, 6)
	assert.Equal(t, "s", msgs[1].ToolCall.ID)
	assert.Equal(t, "s", msgs[2].ToolResult.CallID)
	assert.Equal(t, "slow result", msgs[2].Content)
	assert.Equal(t, "f", msgs[3].ToolCall.ID)
	assert.Equal(t, "f", msgs[4].ToolResult.CallID)
}

func TestRunTurn_ToolErrorIsAbsorbed(t *testing.T) {
	tools := &fakeTools{handlers: map[string]handler{
		"a": func(context.Context, tool.Call) (string, error) { return "", errors.New("city not found") },
	}}
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "1", Name: "a"}),
		answer("sorry, I could not find that city"),
	}}
	loop, store := newLoop(t, model, tools)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x", Tools: specs("a")}))

	msgs := store.GetOrCreate("c1")
	require.Len(t, msgs, 4)
	assert.Equal(t, "Error: city not found", msgs[2].Content)
	assert.Equal(t, "Error: city not found", model.requests[1].Messages[2].Content)
}

func TestRunTurn_UnknownToolIsAbsorbed(t *testing.T) {
	tools := &fakeTools{handlers: map[string]handler{"a": echo("A")}}
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "1", Name: "nope"}),
		answer("ok"),
	}}
	loop, store := newLoop(t, model, tools)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x", Tools: specs("a")}))
	assert.Equal(t, 0, tools.count())
	assert.Equal(t, `Error: tool "nope" not found`, store.GetOrCreate("c1")[2].Content)
}

func TestRunTurn_NoExecutor(t *testing.T) {
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "1", Name: "a"}),
		answer("ok"),
	}}
	loop, store := newLoop(t, model, nil)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x", Tools: specs("a")}))
	assert.Equal(t, "Error: no tools are available", store.GetOrCreate("c1")[2].Content)
}

func TestRunTurn_MissingCallIDsAreFilled(t *testing.T) {
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{Name: "a"}),
		answer("ok"),
	}}
	tools := &fakeTools{handlers: map[string]handler{"a": echo("A")}}
	loop, store := newLoop(t, model, tools)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x", Tools: specs("a")}))
	msgs := store.GetOrCreate("c1")
	require.NotEmpty(t, msgs[1].ToolCall.ID)
	assert.Equal(t, msgs[1].ToolCall.ID, msgs[2].ToolResult.CallID)
}

func TestRunTurn_DiscoversTools(t *testing.T) {
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "1", Name: "get_weather"}),
		answer("ok"),
	}}
	tools := &fakeTools{handlers: map[string]handler{"get_weather": echo("sunny")}}
	loop, store := newLoop(t, model, tools)

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x"}))
	require.Len(t, model.requests[0].Tools, 1)
	assert.Equal(t, "get_weather", model.requests[0].Tools[0].Name)
	assert.Equal(t, "sunny", store.GetOrCreate("c1")[2].Content)
}

func TestRunTurn_ToolListingFailure(t *testing.T) {
	model := &scriptedModel{steps: []step{answer("never")}}
	tools := &fakeTools{listErr: errors.New("mcp gateway unreachable")}
	loop, store := newLoop(t, model, tools)

	requireFailed(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "x"}), FailureTransport)
	assert.Equal(t, 0, model.calls())
	assert.Equal(t, 0, store.Len())
}

func TestRunTurn_RoundCap(t *testing.T) {
	model := &scriptedModel{fallback: callTools(tool.Call{ID: "1", Name: "a"})}
	tools := &fakeTools{handlers: map[string]handler{"a": echo("again")}}
	loop, store := newLoop(t, model, tools, func(c *Config) { c.MaxRounds = 3 })

	out := loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "loop", Tools: specs("a")})

	f := requireFailed(t, out, FailureUnboundedLoop)
	assert.ErrorIs(t, f, ErrMaxRounds)
	assert.Equal(t, 3, model.calls())
	assert.Equal(t, 2, tools.count())

	// user + two completed rounds; the third round's calls are never recorded.
	assert.Len(t, store.GetOrCreate("c1"), 5)
}

func TestRunTurn_WeatherTranscript(t *testing.T) {
	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Boston"}`}),
		answer("It's 15°C and cloudy in Boston."),
	}}
	tools := &fakeTools{handlers: map[string]handler{
		"get_weather": func(_ context.Context, call tool.Call) (string, error) {
			args, err := call.DecodeArgs()
			if err != nil {
				return "", err
			}
			return "Weather in " + args["city"].(string) + ": 15°C, cloudy", nil
		},
	}}
	loop, store := newLoop(t, model, tools)

	out := loop.RunTurn(context.Background(), Turn{
		ConversationID: "weather-1",
		UserText:       "What's the weather in Boston?",
		SystemPrompt:   "You are a helpful assistant tasked with providing weather information.",
		Tools:          specs("get_weather"),
	})
	assert.Equal(t, "It's 15°C and cloudy in Boston.", requireFinal(t, out).Text)

	msgs := store.GetOrCreate("weather-1")
	require.Len(t, msgs, 4)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, `{"city":"Boston"}`, msgs[1].ToolCall.Arguments)
	assert.Equal(t, conversation.RoleTool, msgs[2].Role)
	assert.Equal(t, "Weather in Boston: 15°C, cloudy", msgs[2].Content)
	assert.Equal(t, conversation.RoleAssistant, msgs[3].Role)

	require.Len(t, model.requests, 2)
	assert.Len(t, model.requests[1].Messages, 3)
}

func TestRunTurn_ModelErrorIsTransport(t *testing.T) {
	cause := errors.New("connection refused")
	model := &scriptedModel{steps: []step{
		func(context.Context, *Request) (*Response, error) { return nil, cause },
	}}
	loop, store := newLoop(t, model, nil)

	f := requireFailed(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "hi"}), FailureTransport)
	assert.ErrorIs(t, f, cause)

	// The user message stays; nothing is rolled back.
	assert.Equal(t, []conversation.Message{conversation.UserMessage("hi")}, store.GetOrCreate("c1"))
}

func TestRunTurn_ModelTimeout(t *testing.T) {
	model := &scriptedModel{steps: []step{
		func(ctx context.Context, _ *Request) (*Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	loop, _ := newLoop(t, model, nil, func(c *Config) { c.CallTimeout = 20 * time.Millisecond })

	f := requireFailed(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "hi"}), FailureTimeout)
	assert.ErrorIs(t, f, context.DeadlineExceeded)
}

func TestRunTurn_ToolTimeoutFailsTurn(t *testing.T) {
	tools := &fakeTools{handlers: map[string]handler{
		"slow": func(ctx context.Context, _ tool.Call) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	model := &scriptedModel{steps: []step{callTools(tool.Call{ID: "1", Name: "slow"})}}
	loop, store := newLoop(t, model, tools, func(c *Config) { c.CallTimeout = 20 * time.Millisecond })

	requireFailed(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "hi", Tools: specs("slow")}), FailureTimeout)
	assert.Equal(t, 1, model.calls())
	assert.Len(t, store.GetOrCreate("c1"), 1)
}

func TestRunTurn_Canceled(t *testing.T) {
	model := &scriptedModel{steps: []step{answer("never")}}
	loop, _ := newLoop(t, model, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	requireFailed(t, loop.RunTurn(ctx, Turn{ConversationID: "c1", UserText: "hi"}), FailureCanceled)
	assert.Equal(t, 0, model.calls())
}

func TestRunTurn_EmptyConversationID(t *testing.T) {
	model := &scriptedModel{steps: []step{answer("never")}}
	loop, store := newLoop(t, model, nil)

	f := requireFailed(t, loop.RunTurn(context.Background(), Turn{UserText: "hi"}), FailureInvalidInput)
	assert.ErrorIs(t, f, conversation.ErrEmptyConversationID)
	assert.Equal(t, 0, model.calls())
	assert.Equal(t, 0, store.Len())
}

func TestRunTurn_SameConversationIsSerialized(t *testing.T) {
	model := &scriptedModel{fallback: func(context.Context, *Request) (*Response, error) {
		time.Sleep(5 * time.Millisecond)
		return &Response{Content: "reply"}, nil
	}}
	loop, store := newLoop(t, model, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.RunTurn(context.Background(), Turn{ConversationID: "shared", UserText: "hi"})
		}()
	}
	wg.Wait()

	msgs := store.GetOrCreate("shared")
	require.Len(t, msgs, 10)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, conversation.RoleUser, msgs[i].Role)
		assert.Equal(t, conversation.RoleAssistant, msgs[i+1].Role)
	}
}

func TestRunTurn_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	model := &scriptedModel{steps: []step{
		callTools(tool.Call{ID: "1", Name: "get_weather", Arguments: `{"city":"Paris"}`}),
		answer("sunny"),
	}}
	tools := &fakeTools{handlers: map[string]handler{"get_weather": echo("sunny, 22°C")}}
	loop, _ := newLoop(t, model, tools, func(c *Config) {
		c.Tracer = observability.NewTracerFromProvider(tp)
	})

	requireFinal(t, loop.RunTurn(context.Background(), Turn{ConversationID: "c1", UserText: "weather?", Tools: specs("get_weather")}))

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range sr.Ended() {
		byName[s.Name()] = append(byName[s.Name()], s)
	}

	require.Len(t, byName[observability.SpanTurn], 1)
	turn := byName[observability.SpanTurn][0]

	require.Len(t, byName[observability.SpanChat], 2)
	for _, chat := range byName[observability.SpanChat] {
		assert.Equal(t, turn.SpanContext().SpanID(), chat.Parent().SpanID())
	}

	toolSpans := byName["gen_ai.tool (get_weather)"]
	require.Len(t, toolSpans, 1)
	assert.Equal(t, turn.SpanContext().SpanID(), toolSpans[0].Parent().SpanID())
}
