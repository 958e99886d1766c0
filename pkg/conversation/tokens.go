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

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// tokensPerMessage is the framing overhead OpenAI chat formats add per message.
const tokensPerMessage = 3

// CountMessage returns the token cost of m including framing overhead.
func CountMessage(c TokenCounter, m Message) int {
	n := tokensPerMessage + c.Count(string(m.Role)) + c.Count(m.Content)
	if m.ToolCall != nil {
		n += c.Count(m.ToolCall.Name) + c.Count(m.ToolCall.Arguments)
	}
	return n
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TiktokenCounter counts tokens with the BPE encoding of a model.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter for model, falling back to
// cl100k_base when the model is unknown to tiktoken.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	cacheMu.RLock()
	enc, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &TiktokenCounter{encoding: enc}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = enc
	cacheMu.Unlock()

	return &TiktokenCounter{encoding: enc}, nil
}

// Count implements TokenCounter.
func (t *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}
