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

package conversation

// RetentionPolicy decides which suffix of a transcript to keep.
//
// Implementations must return a suffix of messages that starts at a user
// message (or the input unchanged), so a tool call is never separated from
// its result.
type RetentionPolicy interface {
	Retain(messages []Message) []Message
}

// RetentionFunc adapts a function to RetentionPolicy.
type RetentionFunc func([]Message) []Message

// Retain implements RetentionPolicy.
func (f RetentionFunc) Retain(messages []Message) []Message {
	return f(messages)
}

// Chain applies policies in order.
func Chain(policies ...RetentionPolicy) RetentionPolicy {
	return RetentionFunc(func(messages []Message) []Message {
		for _, p := range policies {
			if p != nil {
				messages = p.Retain(messages)
			}
		}
		return messages
	})
}

// MaxMessages keeps at most n messages, dropping whole turns from the front.
// The most recent turn is always kept, even when it alone exceeds n.
type MaxMessages int

// Retain implements RetentionPolicy.
func (n MaxMessages) Retain(messages []Message) []Message {
	if n <= 0 || len(messages) <= int(n) {
		return messages
	}

	starts := turnStarts(messages)
	if len(starts) == 0 {
		return messages
	}

	limit := len(messages) - int(n)
	for _, start := range starts {
		if start >= limit {
			return messages[start:]
		}
	}
	return messages[starts[len(starts)-1]:]
}

// TokenBudget keeps the most recent whole turns that fit within MaxTokens.
// The most recent turn is always kept.
type TokenBudget struct {
	Counter   TokenCounter
	MaxTokens int
}

// Retain implements RetentionPolicy.
func (b TokenBudget) Retain(messages []Message) []Message {
	if b.Counter == nil || b.MaxTokens <= 0 || len(messages) == 0 {
		return messages
	}

	starts := turnStarts(messages)
	if len(starts) == 0 {
		return messages
	}

	total := 0
	end := len(messages)
	keep := starts[len(starts)-1]
	for i := len(starts) - 1; i >= 0; i-- {
		start := starts[i]
		cost := 0
		for _, m := range messages[start:end] {
			cost += CountMessage(b.Counter, m)
		}
		if total+cost > b.MaxTokens && i != len(starts)-1 {
			break
		}
		total += cost
		keep = start
		end = start
	}
	return messages[keep:]
}

// turnStarts returns the indexes of user messages.
func turnStarts(messages []Message) []int {
	var starts []int
	for i, m := range messages {
		if m.Role == RoleUser {
			starts = append(starts, i)
		}
	}
	return starts
}
