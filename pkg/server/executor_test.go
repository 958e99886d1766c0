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

package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaline-ju/agent-examples/pkg/reasoning"
)

type fakeRunner struct {
	mu      sync.Mutex
	outcome reasoning.Outcome
	ids     []string
	texts   []string
}

func (f *fakeRunner) Run(_ context.Context, conversationID, text string) reasoning.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, conversationID)
	f.texts = append(f.texts, text)
	return f.outcome
}

type recordingWriter struct {
	events []a2a.Event
	err    error
}

func (w *recordingWriter) Write(_ context.Context, ev a2a.Event) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, ev)
	return nil
}

func newRequest(parts ...a2a.Part) *a2asrv.RequestContext {
	return &a2asrv.RequestContext{
		Message:   a2a.NewMessage(a2a.MessageRoleUser, parts...),
		TaskID:    a2a.TaskID("task-1"),
		ContextID: "ctx-1",
	}
}

func newTestExecutor(t *testing.T, outcome reasoning.Outcome) (*Executor, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{outcome: outcome}
	exec, err := NewExecutor(ExecutorConfig{
		AgentName:   "cheerup",
		WorkingText: "Brewing up some good vibes...",
		Runner:      runner,
	})
	require.NoError(t, err)
	return exec, runner
}

func statusEvent(t *testing.T, ev a2a.Event) *a2a.TaskStatusUpdateEvent {
	t.Helper()
	s, ok := ev.(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "expected status update, got %T", ev)
	return s
}

func artifactEvent(t *testing.T, ev a2a.Event) *a2a.TaskArtifactUpdateEvent {
	t.Helper()
	a, ok := ev.(*a2a.TaskArtifactUpdateEvent)
	require.True(t, ok, "expected artifact update, got %T", ev)
	return a
}

func messageText(t *testing.T, msg *a2a.Message) string {
	t.Helper()
	require.NotNil(t, msg)
	return userText(msg)
}

func partsText(parts []a2a.Part) string {
	return userText(&a2a.Message{Parts: parts})
}

func TestExecutor_FinalReply(t *testing.T) {
	exec, runner := newTestExecutor(t, reasoning.Final{Text: "You've got this!"})
	w := &recordingWriter{}

	require.NoError(t, exec.execute(context.Background(), newRequest(a2a.TextPart{Text: "I need a pep talk"}), w))

	assert.Equal(t, []string{"ctx-1"}, runner.ids)
	assert.Equal(t, []string{"I need a pep talk"}, runner.texts)

	require.Len(t, w.events, 4)
	assert.Equal(t, a2a.TaskStateSubmitted, statusEvent(t, w.events[0]).Status.State)

	working := statusEvent(t, w.events[1])
	assert.Equal(t, a2a.TaskStateWorking, working.Status.State)
	assert.Equal(t, "Brewing up some good vibes...", messageText(t, working.Status.Message))

	artifact := artifactEvent(t, w.events[2])
	assert.True(t, artifact.LastChunk)
	require.NotNil(t, artifact.Artifact)
	assert.Equal(t, "You've got this!", partsText(artifact.Artifact.Parts))

	final := statusEvent(t, w.events[3])
	assert.Equal(t, a2a.TaskStateInputRequired, final.Status.State)
	assert.True(t, final.Final)
	assert.Equal(t, "You've got this!", messageText(t, final.Status.Message))
}

func TestExecutor_ExistingTaskSkipsSubmitted(t *testing.T) {
	exec, _ := newTestExecutor(t, reasoning.Final{Text: "ok"})
	w := &recordingWriter{}

	req := newRequest(a2a.TextPart{Text: "again"})
	req.StoredTask = &a2a.Task{ID: req.TaskID, ContextID: req.ContextID}

	require.NoError(t, exec.execute(context.Background(), req, w))
	require.Len(t, w.events, 3)
	assert.Equal(t, a2a.TaskStateWorking, statusEvent(t, w.events[0]).Status.State)
}

func TestExecutor_FailedTurn(t *testing.T) {
	exec, _ := newTestExecutor(t, &reasoning.Failed{
		Kind:   reasoning.FailureTransport,
		Reason: "model call failed in round 1",
		Err:    errors.New("connection refused"),
	})
	w := &recordingWriter{}

	require.NoError(t, exec.execute(context.Background(), newRequest(a2a.TextPart{Text: "hi"}), w))

	require.Len(t, w.events, 4)
	artifact := artifactEvent(t, w.events[2])
	assert.Equal(t, ApologyText, partsText(artifact.Artifact.Parts))

	failed := statusEvent(t, w.events[3])
	assert.Equal(t, a2a.TaskStateFailed, failed.Status.State)
	assert.True(t, failed.Final)
}

func TestExecutor_JoinsTextParts(t *testing.T) {
	exec, runner := newTestExecutor(t, reasoning.Final{Text: "ok"})

	err := exec.execute(context.Background(), newRequest(
		a2a.TextPart{Text: "I have chicken,"},
		a2a.DataPart{Data: map[string]any{"ignored": true}},
		a2a.TextPart{Text: "rice, and broccoli"},
	), &recordingWriter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"I have chicken,\nrice, and broccoli"}, runner.texts)
}

func TestExecutor_MissingMessage(t *testing.T) {
	exec, runner := newTestExecutor(t, reasoning.Final{Text: "ok"})
	err := exec.execute(context.Background(), &a2asrv.RequestContext{TaskID: "t", ContextID: "c"}, &recordingWriter{})
	assert.Error(t, err)
	assert.Empty(t, runner.ids)
}

func TestExecutor_WriteError(t *testing.T) {
	exec, runner := newTestExecutor(t, reasoning.Final{Text: "ok"})
	err := exec.execute(context.Background(), newRequest(a2a.TextPart{Text: "hi"}), &recordingWriter{err: errors.New("queue closed")})
	assert.Error(t, err)
	assert.Empty(t, runner.ids)
}

func TestExecutor_Cancel(t *testing.T) {
	exec, _ := newTestExecutor(t, reasoning.Final{Text: "ok"})
	err := exec.Cancel(context.Background(), newRequest(), nil)
	assert.ErrorIs(t, err, ErrCancelNotSupported)
}

func TestNewExecutor_RequiresRunner(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{})
	assert.Error(t, err)
}
