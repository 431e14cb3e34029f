// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormattedRequest_Validate(t *testing.T) {
	t.Parallel()

	req := GenerateFormattedRequest{Prompt: "hello"}
	assert.NoError(t, req.Validate())

	empty := GenerateFormattedRequest{}
	assert.Error(t, empty.Validate(), "prompt is required")

	oversized := GenerateFormattedRequest{Prompt: strings.Repeat("x", MaxPromptBytes+1)}
	assert.Error(t, oversized.Validate(), "prompt above the byte limit is rejected")
}

func TestGenerateFormattedRequest_EnsureDefaults(t *testing.T) {
	t.Parallel()

	req := GenerateFormattedRequest{Prompt: "p"}
	req.EnsureDefaults("fallback-model")

	assert.Equal(t, "fallback-model", req.Model)
	require.NotNil(t, req.Stream)
	assert.True(t, *req.Stream, "streaming is the default")

	f := false
	explicit := GenerateFormattedRequest{Prompt: "p", Model: "chosen", Stream: &f}
	explicit.EnsureDefaults("fallback-model")
	assert.Equal(t, "chosen", explicit.Model)
	assert.False(t, *explicit.Stream)
}

func TestGenerateRequest_Validate(t *testing.T) {
	t.Parallel()

	req := GenerateRequest{Prompt: "hi"}
	assert.NoError(t, req.Validate())

	req.EnsureDefaults("m")
	assert.Equal(t, "m", req.Model)

	assert.Error(t, (&GenerateRequest{}).Validate())
}
