// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package composer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidegate/tidegate/services/gateway/store"
)

// ErrUnknownDocument is returned when a request references a filename that
// was never uploaded. Callers must surface it to the client without
// contacting the inference backend.
var ErrUnknownDocument = errors.New("unknown document")

// DocumentRef distinguishes "no document requested" from "the empty-named
// document requested". A ref with Requested=false never consults the store.
type DocumentRef struct {
	Name      string
	Requested bool
}

// Composition is the result of folding a prompt, an optional document, and
// prior conversation history into a single backend prompt.
type Composition struct {
	// FullPrompt is everything sent to the backend: prior turns in order,
	// then the newly composed turn.
	FullPrompt string
	// Turn is the composed user turn alone, the unit committed to history.
	Turn string
	// UsedDocument reports whether document text was injected into Turn.
	UsedDocument bool
}

// Composer builds backend prompts from session history and stored documents.
type Composer struct {
	docs *store.DocumentStore
}

func New(docs *store.DocumentStore) *Composer {
	return &Composer{docs: docs}
}

// Compose builds the turn for a new user prompt and prepends the session's
// prior history.
//
// When a document is referenced, its full text is injected into this turn
// only. Later turns in the same session see the document text as ordinary
// history, so it is transmitted to the backend exactly once per reference.
func (c *Composer) Compose(prompt string, ref DocumentRef, history []string) (Composition, error) {
	var turn string
	used := false
	if ref.Requested {
		doc, ok := c.docs.Get(ref.Name)
		if !ok {
			return Composition{}, fmt.Errorf("%w: %s", ErrUnknownDocument, ref.Name)
		}
		turn = documentTurn(doc, prompt)
		used = true
	} else {
		turn = "User: " + prompt
	}

	var b strings.Builder
	for _, h := range history {
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString(turn)

	return Composition{FullPrompt: b.String(), Turn: turn, UsedDocument: used}, nil
}

// documentTurn renders the fixed-format block injecting a document into a
// user turn: a header naming the file, the verbatim text, one instruction
// sentence, then the prompt itself.
func documentTurn(doc store.Document, prompt string) string {
	var b strings.Builder
	b.WriteString("The user has provided the document '")
	b.WriteString(doc.Name)
	b.WriteString("':\n\n")
	b.WriteString(doc.Text)
	b.WriteString("\n\nAnswer the user's question using the document above.\n")
	b.WriteString("User: ")
	b.WriteString(prompt)
	return b.String()
}
