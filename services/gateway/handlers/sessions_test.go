// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidegate/tidegate/services/gateway/store"
)

func TestListSessions(t *testing.T) {
	sessions := store.NewSessionStore()
	id := sessions.Ensure("")
	sessions.Append(id, "turn")

	router := gin.New()
	router.GET("/sessions", ListSessions(sessions))

	req, _ := http.NewRequest("GET", "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Sessions []store.SessionInfo `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, id, body.Sessions[0].SessionID)
	assert.Equal(t, 1, body.Sessions[0].Turns)
}

func TestGetSessionHistory(t *testing.T) {
	sessions := store.NewSessionStore()
	id := sessions.Ensure("")
	sessions.Append(id, "User: hi")
	sessions.Append(id, "hello")

	router := gin.New()
	router.GET("/sessions/:sessionId/history", GetSessionHistory(sessions))

	req, _ := http.NewRequest("GET", "/sessions/"+id+"/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SessionID string   `json:"session_id"`
		History   []string `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, id, body.SessionID)
	assert.Equal(t, []string{"User: hi", "hello"}, body.History)
}

func TestGetSessionHistory_Unknown(t *testing.T) {
	router := gin.New()
	router.GET("/sessions/:sessionId/history", GetSessionHistory(store.NewSessionStore()))

	req, _ := http.NewRequest("GET", "/sessions/nope/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDocuments(t *testing.T) {
	docs := store.NewDocumentStore()
	docs.Put("a.txt", "abc")

	router := gin.New()
	router.GET("/documents", ListDocuments(docs))

	req, _ := http.NewRequest("GET", "/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Documents []store.DocumentInfo `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Documents, 1)
	assert.Equal(t, "a.txt", body.Documents[0].Name)
	assert.Equal(t, 3, body.Documents[0].Chars)
}

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
