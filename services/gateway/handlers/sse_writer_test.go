// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidegate/tidegate/services/gateway/relay"
)

func TestSSEWriter_WriteDelta(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	err = w.WriteDelta(relay.StreamEvent{
		Response:    "chunk",
		SessionID:   "s-1",
		FileContext: true,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"data: {\"response\":\"chunk\",\"session_id\":\"s-1\",\"file_context\":true}\n\n",
		rec.Body.String())
	assert.True(t, rec.Flushed, "every frame must be flushed immediately")
}

func TestSSEWriter_WriteError(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteError("backend gone"))
	assert.Equal(t, "data: {\"error\":\"backend gone\"}\n\n", rec.Body.String())
}

func TestSSEWriter_WriteKeepAlive(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteKeepAlive())
	assert.Equal(t, ": ping\n\n", rec.Body.String())
}

func TestSetSSEHeaders(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}
