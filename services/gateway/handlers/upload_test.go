// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidegate/tidegate/services/extract"
	"github.com/tidegate/tidegate/services/gateway/store"
)

func newUploadFixture(t *testing.T) (*gin.Engine, *store.DocumentStore) {
	t.Helper()
	docs := store.NewDocumentStore()
	handler := NewUploadHandler(docs, extract.NewRegistry(""))

	router := gin.New()
	router.POST("/upload", handler.HandleUpload)
	return router, docs
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload_TextSuccess(t *testing.T) {
	router, docs := newUploadFixture(t)

	content := "héllo document"
	body, contentType := multipartBody(t, "file", "notes.txt", []byte(content))
	req, _ := http.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "notes.txt", resp["filename"])
	// 14 runes, 15 bytes: the count is runes.
	assert.Equal(t, float64(14), resp["chars"])

	doc, ok := docs.Get("notes.txt")
	require.True(t, ok)
	assert.Equal(t, content, doc.Text)
}

func TestHandleUpload_MissingFileField(t *testing.T) {
	router, _ := newUploadFixture(t)

	req, _ := http.NewRequest("POST", "/upload", bytes.NewBufferString("no form"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUpload_ExtractionFailureNotStored(t *testing.T) {
	router, docs := newUploadFixture(t)

	// A registry with no extraction service makes every PDF fail.
	body, contentType := multipartBody(t, "file", "scan.pdf", []byte("%PDF-1.4 garbage"))
	req, _ := http.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])

	_, ok := docs.Get("scan.pdf")
	assert.False(t, ok, "failed extraction must not store a document")
}

func TestHandleUpload_NonUTF8Rejected(t *testing.T) {
	router, docs := newUploadFixture(t)

	body, contentType := multipartBody(t, "file", "binary.txt", []byte{0xff, 0xfe, 0x00, 0x80})
	req, _ := http.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	_, ok := docs.Get("binary.txt")
	assert.False(t, ok)
}

func TestHandleUpload_OverwriteSameName(t *testing.T) {
	router, docs := newUploadFixture(t)

	for _, content := range []string{"version one", "version two"} {
		body, contentType := multipartBody(t, "file", "doc.txt", []byte(content))
		req, _ := http.NewRequest("POST", "/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	doc, ok := docs.Get("doc.txt")
	require.True(t, ok)
	assert.Equal(t, "version two", doc.Text)
}

func TestHandleUpload_PathComponentsStripped(t *testing.T) {
	router, docs := newUploadFixture(t)

	body, contentType := multipartBody(t, "file", "../../etc/passwd.txt", []byte("text"))
	req, _ := http.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	_, ok := docs.Get("passwd.txt")
	assert.True(t, ok, "stored under the base name only")
}
