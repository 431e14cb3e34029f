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
	"unicode/utf8"
)

// Document is the extracted text of an uploaded file.
type Document struct {
	Name       string
	Text       string
	IngestedAt time.Time
}

// DocumentInfo is the summary view returned by the document listing endpoint.
type DocumentInfo struct {
	Name       string    `json:"filename"`
	Chars      int       `json:"chars"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DocumentStore maps filenames to extracted document text, in memory.
// Uploading the same filename twice overwrites the earlier text; there is
// no namespacing, no size limit, and no expiry.
type DocumentStore struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]Document)}
}

// Put stores extracted text under a filename, unconditionally replacing any
// earlier document with the same name. Empty text is stored as-is; whether
// an extraction produced anything useful is the extractor's concern.
func (s *DocumentStore) Put(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = Document{Name: name, Text: text, IngestedAt: time.Now().UTC()}
}

// Get returns the document stored under name, if any.
func (s *DocumentStore) Get(name string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[name]
	return doc, ok
}

// List returns a summary of every stored document.
func (s *DocumentStore) List() []DocumentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DocumentInfo, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, DocumentInfo{
			Name:       doc.Name,
			Chars:      utf8.RuneCountInString(doc.Text),
			IngestedAt: doc.IngestedAt,
		})
	}
	return out
}
