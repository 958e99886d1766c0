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
)

// ErrMaxRounds is the cause of an UnboundedLoop failure.
var ErrMaxRounds = errors.New("reasoning loop exceeded maximum rounds")

// Outcome is the terminal value of a turn: either Final or *Failed.
//
//	switch o := loop.RunTurn(ctx, turn).(type) {
//	case reasoning.Final:
//	    reply(o.Text)
//	case *reasoning.Failed:
//	    apologize(o.Kind)
//	}
type Outcome interface {
	// Label is a short, stable name for metrics and logs.
	Label() string

	isOutcome()
}

// Final is a completed turn carrying the assistant's answer.
type Final struct {
	Text string
}

func (Final) isOutcome() {}

// Label implements Outcome.
func (Final) Label() string { return "final" }

// FailureKind classifies why a turn failed.
type FailureKind string

const (
	// FailureTransport means the model endpoint failed.
	FailureTransport FailureKind = "transport"

	// FailureUnboundedLoop means the round cap was reached.
	FailureUnboundedLoop FailureKind = "unbounded_loop"

	// FailureTimeout means a model or tool call exceeded its deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureCanceled means the caller gave up on the turn.
	FailureCanceled FailureKind = "canceled"

	// FailureInvalidInput means the turn could not start.
	FailureInvalidInput FailureKind = "invalid_input"
)

// Failed is a turn that ended without an answer. It implements error.
type Failed struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (*Failed) isOutcome() {}

// Label implements Outcome.
func (f *Failed) Label() string { return string(f.Kind) }

// Error implements error.
func (f *Failed) Error() string {
	return string(f.Kind) + ": " + f.Reason
}

// Unwrap returns the underlying cause.
func (f *Failed) Unwrap() error { return f.Err }

func fail(kind FailureKind, reason string, err error) *Failed {
	return &Failed{Kind: kind, Reason: reason, Err: err}
}

// classify maps an error from a call made under callCtx (derived from
// parent) to a failure kind.
func classify(parent, callCtx context.Context, err error) FailureKind {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return FailureTimeout
		}
		return FailureCanceled
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureTransport
}
