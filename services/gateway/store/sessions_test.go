// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_EnsureMintsFreshIDs(t *testing.T) {
	t.Parallel()
	s := NewSessionStore()

	id1 := s.Ensure("")
	id2 := s.Ensure("")

	require.NotEmpty(t, id1)
	require.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2, "each empty-id request must get its own session")

	_, err := uuid.Parse(id1)
	assert.NoError(t, err, "generated ids are UUIDs")

	assert.Empty(t, s.Snapshot(id1), "fresh session starts with empty history")
}

func TestSessionStore_EnsureAcceptsUnknownIDs(t *testing.T) {
	t.Parallel()
	s := NewSessionStore()

	got := s.Ensure("client-chosen-id")
	assert.Equal(t, "client-chosen-id", got)
	assert.Len(t, s.List(), 1)
}

func TestSessionStore_AppendOrdering(t *testing.T) {
	t.Parallel()
	s := NewSessionStore()

	id := s.Ensure("")
	s.Append(id, "t1")
	s.Append(id, "t2")
	s.Append(id, "t3")

	assert.Equal(t, []string{"t1", "t2", "t3"}, s.Snapshot(id))
}

func TestSessionStore_AppendToUnknownIDInitializes(t *testing.T) {
	t.Parallel()
	s := NewSessionStore()

	s.Append("never-ensured", "turn")
	assert.Equal(t, []string{"turn"}, s.Snapshot("never-ensured"))
}

func TestSessionStore_SnapshotIsACopy(t *testing.T) {
	t.Parallel()
	s := NewSessionStore()

	id := s.Ensure("")
	s.Append(id, "original")

	snap := s.Snapshot(id)
	snap[0] = "mutated"

	assert.Equal(t, []string{"original"}, s.Snapshot(id))
}

func TestSessionStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	t.Parallel()
	s := NewSessionStore()
	id := s.Ensure("")

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Append(id, fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, s.Snapshot(id), writers*perWriter)
}
