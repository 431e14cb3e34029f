// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the gateway
// service.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxPromptBytes is the maximum size of a single prompt. Checked as
	// byte length, not rune count, to bound memory per request.
	MaxPromptBytes = 64 * 1024 // 64KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// generateValidate is the validator instance for gateway datatypes.
// Initialized in init() with custom validators.
var generateValidate *validator.Validate

func init() {
	generateValidate = validator.New()
	_ = generateValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes reports whether a string field fits inside MaxPromptBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Streaming Generation Request
// =============================================================================

// GenerateFormattedRequest is the query surface of GET /generate_formatted.
//
// # Fields
//
//   - Prompt: Required, non-empty, at most 64KB.
//   - SessionID: Optional. Empty means "start a new session"; the server
//     mints the id and echoes it in every event.
//   - FileName: Optional. When present, the named uploaded document is
//     injected into this turn. Presence is tracked separately from value so
//     an explicit empty name is still a document request.
//   - Model: Optional, defaults server-side.
//   - Stream: Optional, defaults to true. False returns one JSON body with
//     the accumulated response instead of an event stream.
type GenerateFormattedRequest struct {
	Prompt    string `form:"prompt" validate:"required,maxbytes"`
	SessionID string `form:"session_id"`
	FileName  string `form:"file_name"`
	Model     string `form:"model"`
	Stream    *bool  `form:"stream"`

	// FileNameSet records whether the file_name parameter appeared in the
	// query at all. Set by the handler, not by binding.
	FileNameSet bool `form:"-"`
}

// Validate validates the request after query binding.
func (r *GenerateFormattedRequest) Validate() error {
	return generateValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
func (r *GenerateFormattedRequest) EnsureDefaults(defaultModel string) {
	if r.Model == "" {
		r.Model = defaultModel
	}
	if r.Stream == nil {
		t := true
		r.Stream = &t
	}
}

// =============================================================================
// Raw Passthrough Request
// =============================================================================

// GenerateRequest is the body of POST /generate, a session-less passthrough
// to the backend.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt" validate:"required,maxbytes"`
	Stream bool   `json:"stream"`
}

// Validate validates the request after JSON binding.
func (r *GenerateRequest) Validate() error {
	return generateValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
func (r *GenerateRequest) EnsureDefaults(defaultModel string) {
	if r.Model == "" {
		r.Model = defaultModel
	}
}

// GenerateResponse is the body returned by POST /generate and by
// GET /generate_formatted when stream=false.
type GenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
	Done      bool   `json:"done"`
}

// =============================================================================
// Upload Response
// =============================================================================

// UploadResponse confirms a successful document ingestion. Chars is the
// rune count of the extracted text, not its byte length.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Chars    int    `json:"chars"`
}
