// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_PutGet(t *testing.T) {
	t.Parallel()
	s := NewDocumentStore()

	s.Put("notes.txt", "hello world")

	doc, ok := s.Get("notes.txt")
	require.True(t, ok)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "hello world", doc.Text)
	assert.False(t, doc.IngestedAt.IsZero())
}

func TestDocumentStore_GetUnknown(t *testing.T) {
	t.Parallel()
	s := NewDocumentStore()

	_, ok := s.Get("never-uploaded.txt")
	assert.False(t, ok)
}

func TestDocumentStore_PutOverwrites(t *testing.T) {
	t.Parallel()
	s := NewDocumentStore()

	s.Put("doc.txt", "first version")
	s.Put("doc.txt", "second version")

	doc, ok := s.Get("doc.txt")
	require.True(t, ok)
	assert.Equal(t, "second version", doc.Text)
	assert.Len(t, s.List(), 1)
}

func TestDocumentStore_EmptyTextStored(t *testing.T) {
	t.Parallel()
	s := NewDocumentStore()

	s.Put("empty.txt", "")

	doc, ok := s.Get("empty.txt")
	require.True(t, ok)
	assert.Equal(t, "", doc.Text)
}

func TestDocumentStore_ListCountsRunes(t *testing.T) {
	t.Parallel()
	s := NewDocumentStore()

	s.Put("unicode.txt", "héllo")

	infos := s.List()
	require.Len(t, infos, 1)
	assert.Equal(t, 5, infos[0].Chars, "char count is runes, not bytes")
}
