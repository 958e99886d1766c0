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

// Package tool defines the types exchanged between the reasoning loop and
// whatever executes tools on its behalf.
//
// A model advertises interest in a tool by emitting a Call; the executor
// answers with the text content that becomes the matching Result:
//
//	specs, _ := executor.Tools(ctx)
//	content, err := executor.Execute(ctx, tool.Call{ID: "call_1", Name: "get_weather", Arguments: `{"city":"NY"}`})
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Spec describes a callable tool as presented to the model.
type Spec struct {
	// Name is the unique name of the tool.
	Name string `json:"name"`

	// Description tells the model what the tool does.
	Description string `json:"description,omitempty"`

	// Parameters is the JSON Schema of the tool's arguments.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Call is a tool invocation requested by the model.
type Call struct {
	// ID correlates the call with its Result.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// Arguments is the raw JSON object emitted by the model.
	Arguments string `json:"arguments,omitempty"`
}

// Result is the outcome of executing a Call.
type Result struct {
	// CallID is the ID of the Call this result answers.
	CallID string `json:"call_id"`

	// Content is the text shown to the model.
	Content string `json:"content"`
}

// Executor executes tool calls by name against the set of tools it
// advertises.
type Executor interface {
	// Tools returns the specs of the tools this executor can run.
	Tools(ctx context.Context) ([]Spec, error)

	// Execute runs a single call and returns its text content.
	Execute(ctx context.Context, call Call) (string, error)
}

// DecodeArgs parses the call's JSON arguments into a map.
// Empty arguments decode to an empty map.
func (c Call) DecodeArgs() (map[string]any, error) {
	args := make(map[string]any)
	raw := strings.TrimSpace(c.Arguments)
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for tool %q: %w", c.Name, err)
	}
	return args, nil
}

// Names returns the names of the given calls in order.
func Names(calls []Call) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the spec with the given name.
func Lookup(specs []Spec, name string) (Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}
