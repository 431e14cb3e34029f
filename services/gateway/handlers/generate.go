// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gateway's HTTP handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidegate/tidegate/services/gateway/composer"
	"github.com/tidegate/tidegate/services/gateway/datatypes"
	"github.com/tidegate/tidegate/services/gateway/observability"
	"github.com/tidegate/tidegate/services/gateway/relay"
	"github.com/tidegate/tidegate/services/inference"
)

// GenerateHandler serves the generation endpoints: the session-aware
// streaming relay and the raw passthrough.
type GenerateHandler struct {
	relay        *relay.Relay
	client       inference.Client
	defaultModel string
	tracer       trace.Tracer
}

// NewGenerateHandler wires the generation endpoints.
//
// # Limitations
//
//   - Panics on nil relay or client.
func NewGenerateHandler(r *relay.Relay, client inference.Client, defaultModel string) *GenerateHandler {
	if r == nil {
		panic("NewGenerateHandler: relay must not be nil")
	}
	if client == nil {
		panic("NewGenerateHandler: client must not be nil")
	}
	return &GenerateHandler{
		relay:        r,
		client:       client,
		defaultModel: defaultModel,
		tracer:       otel.Tracer("tidegate.gateway.handlers"),
	}
}

// HandleGenerateFormatted implements GET /generate_formatted.
//
// # Description
//
// Resolves the session, composes the backend prompt from history and any
// referenced document, and relays the backend stream to the client as
// Server-Sent Events. Every content delta becomes one frame:
//
//	data: {"response": "...", "session_id": "...", "file_context": bool}
//
// Validation and unknown-document failures are reported as plain JSON
// before any SSE bytes are written; failures after the stream has started
// become a terminal {"error": ...} frame.
func (h *GenerateHandler) HandleGenerateFormatted(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointGenerateFormatted

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleGenerateFormatted")
	defer span.End()

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			duration := time.Since(startTime).Seconds()
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, duration, success)
		}
	}()

	// Step 1: Bind and validate query parameters
	var req datatypes.GenerateFormattedRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bind failed")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	// Presence of file_name matters even when its value is empty.
	_, req.FileNameSet = c.GetQuery("file_name")
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required and must be under 64KB"})
		return
	}
	req.EnsureDefaults(h.defaultModel)
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Bool("request.has_file", req.FileNameSet),
	)

	// Step 2: Prepare the generation (session resolve + compose + commit)
	gen, err := h.relay.Prepare(ctx, relay.Request{
		Prompt:    req.Prompt,
		Model:     req.Model,
		SessionID: req.SessionID,
		Document:  composer.DocumentRef{Name: req.FileName, Requested: req.FileNameSet},
	})
	if err != nil {
		if errors.Is(err, composer.ErrUnknownDocument) {
			slog.Warn("request referenced unknown document", "fileName", req.FileName)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeUnknownDocument)
			}
			c.JSON(http.StatusNotFound, gin.H{
				"error": fmt.Sprintf("File '%s' not found. Upload it before referencing it in a request.", req.FileName),
			})
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare generation"})
		return
	}

	// Step 3: Non-streaming variant returns a single JSON body
	if !*req.Stream {
		full, err := gen.Accumulate(ctx)
		if err != nil {
			h.recordStreamFailure(ctx, span, endpoint, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "inference backend unavailable"})
			return
		}
		success = true
		c.JSON(http.StatusOK, datatypes.GenerateResponse{
			Model:     req.Model,
			Response:  full,
			SessionID: gen.SessionID,
			Done:      true,
		})
		return
	}

	// Step 4: Set SSE headers and create writer
	SetSSEHeaders(c.Writer)
	c.Writer.WriteHeader(http.StatusOK)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE not supported")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		return
	}

	// Step 5: Relay the backend stream
	firstDelta := true
	err = gen.Stream(ctx, func(ev relay.StreamEvent) error {
		if firstDelta {
			firstDelta = false
			if m := observability.DefaultMetrics; m != nil {
				m.RecordTimeToFirstDelta(endpoint, time.Since(startTime).Seconds())
			}
		}
		if m := observability.DefaultMetrics; m != nil {
			m.RecordDelta(endpoint)
		}
		return writer.WriteDelta(ev)
	})
	if err != nil {
		h.recordStreamFailure(ctx, span, endpoint, err)
		if ctx.Err() == nil {
			// The client is still there; tell it the backend died.
			_ = writer.WriteError("inference backend unavailable")
		}
		return
	}

	success = true
	slog.Info("stream complete",
		"sessionId", gen.SessionID,
		"fileContext", gen.UsedDocument,
		"durationMs", time.Since(startTime).Milliseconds(),
	)
}

// recordStreamFailure classifies a mid-flight failure for metrics and
// tracing. Client disconnects are counted separately from backend faults.
func (h *GenerateHandler) recordStreamFailure(ctx context.Context, span trace.Span, endpoint observability.Endpoint, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case ctx.Err() != nil:
		slog.Info("client disconnected mid-stream")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordClientDisconnect(endpoint)
			m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
		}
	case errors.Is(err, inference.ErrBackendUnavailable):
		slog.Error("inference backend failed", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeBackendUnavailable)
		}
	default:
		slog.Error("stream failed", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
	}
}

// HandleGenerate implements POST /generate, a raw passthrough with no
// session or document handling. The backend is always asked for a complete
// response; the body mirrors the backend's final object shape.
func (h *GenerateHandler) HandleGenerate(c *gin.Context) {
	endpoint := observability.EndpointGenerate

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleGenerate")
	defer span.End()

	var req datatypes.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
			m.RecordRequest(endpoint, false)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
			m.RecordRequest(endpoint, false)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required and must be under 64KB"})
		return
	}
	req.EnsureDefaults(h.defaultModel)
	span.SetAttributes(attribute.String("llm.model", req.Model))

	full, err := h.client.Generate(ctx, req.Model, req.Prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("passthrough generation failed", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeBackendUnavailable)
			m.RecordRequest(endpoint, false)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "inference backend unavailable"})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(endpoint, true)
	}
	c.JSON(http.StatusOK, datatypes.GenerateResponse{
		Model:    req.Model,
		Response: full,
		Done:     true,
	})
}
