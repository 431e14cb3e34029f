// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrExtractionFailed wraps any failure to turn an uploaded file into text.
// The document must not be stored when this is returned.
var ErrExtractionFailed = errors.New("text extraction failed")

// Extractor turns an uploaded file on disk into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Registry selects an extractor by file extension. Unknown extensions fall
// back to plain-text extraction, which rejects non-UTF-8 content.
type Registry struct {
	text Extractor
	pdf  Extractor
}

// NewRegistry wires the built-in extractors. pdfServiceURL may be empty, in
// which case PDF uploads fail with a clear message instead of a dial error.
func NewRegistry(pdfServiceURL string) *Registry {
	return &Registry{
		text: &TextExtractor{},
		pdf:  &PDFExtractor{serviceURL: pdfServiceURL, httpClient: &http.Client{Timeout: 2 * time.Minute}},
	}
}

// ForFile returns the extractor responsible for the given filename.
func (r *Registry) ForFile(name string) Extractor {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return r.pdf
	default:
		return r.text
	}
}

// TextExtractor reads a file verbatim as UTF-8 text.
type TextExtractor struct{}

func (e *TextExtractor) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file is not valid UTF-8 text", ErrExtractionFailed)
	}
	return string(data), nil
}

// PDFExtractor delegates to an external extraction service. PDF parsing
// stays out of process; the gateway only ships bytes and receives text.
type PDFExtractor struct {
	serviceURL string
	httpClient *http.Client
}

type extractResponse struct {
	Text string `json:"text"`
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	if e.serviceURL == "" {
		return "", fmt.Errorf("%w: no extraction service configured for PDF files", ErrExtractionFailed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.serviceURL+"/extract", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		slog.Error("extraction service call failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("extraction service returned an error", "status_code", resp.StatusCode, "response", string(body))
		return "", fmt.Errorf("%w: extraction service status %d", ErrExtractionFailed, resp.StatusCode)
	}

	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: bad extraction service response: %v", ErrExtractionFailed, err)
	}
	return parsed.Text, nil
}
