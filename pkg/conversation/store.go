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

// Package conversation provides the in-process conversation store.
//
// The store maps a conversation id (the A2A context id) to an append-only
// transcript. It is safe for concurrent use; turns on the same id are
// serialized with Acquire so that appends from one turn are never
// interleaved with another.
//
// # Retention
//
// Transcripts live for the process lifetime unless a RetentionPolicy or an
// idle timeout is configured. Policies run only when a turn releases its
// conversation, so a transcript is never trimmed while a turn is using it.
//
//	store := conversation.NewStore(
//	    conversation.WithRetention(conversation.MaxMessages(200)),
//	    conversation.WithMaxIdle(30*time.Minute),
//	)
//	go store.RunJanitor(ctx, time.Minute)
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ErrEmptyConversationID is returned when a conversation id is empty.
var ErrEmptyConversationID = errors.New("conversation id must not be empty")

type entry struct {
	messages []Message
	lastUsed time.Time

	// turn holds a token while a turn owns the conversation.
	turn chan struct{}

	// pending counts turns that hold or wait for the token.
	pending int
}

// Store holds transcripts keyed by conversation id.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	retention RetentionPolicy
	maxIdle   time.Duration
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetention sets the policy applied when a turn releases a conversation.
func WithRetention(p RetentionPolicy) Option {
	return func(s *Store) {
		s.retention = p
	}
}

// WithMaxIdle evicts conversations that have not been used for d.
// Zero disables idle eviction.
func WithMaxIdle(d time.Duration) Option {
	return func(s *Store) {
		s.maxIdle = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// entryLocked returns the entry for id, creating it if needed.
// s.mu must be held.
func (s *Store) entryLocked(id string) *entry {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{turn: make(chan struct{}, 1)}
		s.entries[id] = e
	}
	e.lastUsed = s.now()
	return e
}

// GetOrCreate returns a copy of the transcript for id, registering the id
// if it is new. An empty id yields an empty transcript and is not
// registered.
func (s *Store) GetOrCreate(id string) []Message {
	if id == "" {
		return []Message{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(id)
	return slices.Clone(e.messages)
}

// Append adds messages to the end of the transcript for id.
func (s *Store) Append(id string, msgs ...Message) error {
	if id == "" {
		return ErrEmptyConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(id)
	e.messages = append(e.messages, msgs...)
	return nil
}

// Acquire blocks until the caller owns the conversation id or ctx is done.
// The returned release function must be called exactly once; it applies
// the retention policy before handing the conversation to the next turn.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	if id == "" {
		return nil, ErrEmptyConversationID
	}

	s.mu.Lock()
	e := s.entryLocked(id)
	e.pending++
	s.mu.Unlock()

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		s.mu.Lock()
		e.pending--
		s.mu.Unlock()
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			if s.retention != nil {
				e.messages = s.retention.Retain(e.messages)
			}
			e.pending--
			e.lastUsed = s.now()
			s.mu.Unlock()
			<-e.turn
		})
	}
	return release, nil
}

// Len returns the number of registered conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts conversations idle for longer than the configured maximum
// and returns how many were removed. Conversations with a turn in flight
// are never evicted.
func (s *Store) Sweep() int {
	if s.maxIdle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if e.pending > 0 {
			continue
		}
		if now.Sub(e.lastUsed) > s.maxIdle {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps idle conversations every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.maxIdle <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("Evicted idle conversations", "count", n, "remaining", s.Len())
			}
		}
	}
}
