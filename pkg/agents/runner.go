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

package agents

import (
	"context"
	"errors"

	"github.com/evaline-ju/agent-examples/pkg/reasoning"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

// Runner runs turns for one profile.
type Runner struct {
	profile Profile
	loop    *reasoning.Loop
}

// NewRunner binds profile to loop.
func NewRunner(profile Profile, loop *reasoning.Loop) (*Runner, error) {
	if loop == nil {
		return nil, errors.New("reasoning loop is required")
	}
	if profile.Name == "" {
		return nil, errors.New("profile name is required")
	}
	return &Runner{profile: profile, loop: loop}, nil
}

// Profile returns the bound profile.
func (r *Runner) Profile() Profile { return r.profile }

// Run executes one turn of the conversation identified by conversationID.
func (r *Runner) Run(ctx context.Context, conversationID, text string) reasoning.Outcome {
	turn := reasoning.Turn{
		ConversationID: conversationID,
		UserText:       text,
		SystemPrompt:   r.profile.SystemPrompt,
	}
	if !r.profile.UsesTools {
		// An empty, non-nil list keeps the loop from listing tools.
		turn.Tools = []tool.Spec{}
	}
	return r.loop.RunTurn(ctx, turn)
}
