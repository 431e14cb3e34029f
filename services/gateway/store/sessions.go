// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is the summary view of a session returned by listing endpoints.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionRecord struct {
	history   []string
	createdAt time.Time
}

// SessionStore holds per-session conversation history in memory for the
// lifetime of the process.
//
// # Description
//
// Each session is an ordered, append-only list of turns keyed by a session
// id. All mutations are serialized by a single mutex, so concurrent appends
// to the same session interleave without loss and a snapshot is always a
// consistent prefix of the history.
//
// # Limitations
//
//   - No eviction. Long-running processes accumulate sessions without bound.
//   - No persistence. Histories are gone on restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*sessionRecord)}
}

// Ensure resolves a client-supplied session id to the id that will own this
// exchange. An empty id mints a fresh UUID with an empty history. A non-empty
// id is accepted as-is; unknown ids are initialized on first sight, since
// there is no authentication to validate ownership against.
func (s *SessionStore) Ensure(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &sessionRecord{createdAt: time.Now().UTC()}
	}
	return id
}

// Append adds one turn to the end of a session's history. An unknown id is
// initialized first so an append can never be silently dropped.
func (s *SessionStore) Append(id, turn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		rec = &sessionRecord{createdAt: time.Now().UTC()}
		s.sessions[id] = rec
	}
	rec.history = append(rec.history, turn)
}

// Snapshot returns a copy of the session's turns in append order. Unknown
// ids yield an empty slice.
func (s *SessionStore) Snapshot(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]string, len(rec.history))
	copy(out, rec.history)
	return out
}

// List returns a summary of every live session.
func (s *SessionStore) List() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for id, rec := range s.sessions {
		out = append(out, SessionInfo{
			SessionID: id,
			Turns:     len(rec.history),
			CreatedAt: rec.createdAt,
		})
	}
	return out
}
