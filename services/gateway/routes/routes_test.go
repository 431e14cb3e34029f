// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tidegate/tidegate/services/extract"
	"github.com/tidegate/tidegate/services/gateway/composer"
	"github.com/tidegate/tidegate/services/gateway/relay"
	"github.com/tidegate/tidegate/services/gateway/store"
	"github.com/tidegate/tidegate/services/inference"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubClient struct{}

func (stubClient) Generate(context.Context, string, string) (string, error) { return "", nil }
func (stubClient) GenerateStream(ctx context.Context, model, prompt string, cb inference.StreamCallback) error {
	return cb(inference.StreamChunk{Done: true})
}

func newTestRouter() *gin.Engine {
	sessions := store.NewSessionStore()
	documents := store.NewDocumentStore()
	client := stubClient{}
	rel := relay.New(sessions, composer.New(documents), client, 0)

	router := gin.New()
	SetupRoutes(router, Deps{
		Sessions:     sessions,
		Documents:    documents,
		Relay:        rel,
		Client:       client,
		Extractors:   extract.NewRegistry(""),
		DefaultModel: "test-model",
	})
	return router
}

func TestRoutes_Registered(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/sessions", http.StatusOK},
		{"GET", "/documents", http.StatusOK},
		{"GET", "/generate_formatted", http.StatusBadRequest}, // missing prompt
		{"POST", "/upload", http.StatusBadRequest},            // missing file
		{"GET", "/sessions/unknown/history", http.StatusNotFound},
	}

	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	router := newTestRouter()

	req, _ := http.NewRequest("GET", "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
