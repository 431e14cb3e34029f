// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidegate/tidegate/services/extract"
	"github.com/tidegate/tidegate/services/gateway/datatypes"
	"github.com/tidegate/tidegate/services/gateway/observability"
	"github.com/tidegate/tidegate/services/gateway/store"
)

// UploadHandler ingests documents: receive the file, extract its text, and
// store it under its filename for later prompt composition.
type UploadHandler struct {
	docs     *store.DocumentStore
	registry *extract.Registry
	tracer   trace.Tracer
}

func NewUploadHandler(docs *store.DocumentStore, registry *extract.Registry) *UploadHandler {
	if docs == nil {
		panic("NewUploadHandler: document store must not be nil")
	}
	if registry == nil {
		panic("NewUploadHandler: extractor registry must not be nil")
	}
	return &UploadHandler{
		docs:     docs,
		registry: registry,
		tracer:   otel.Tracer("tidegate.gateway.handlers"),
	}
}

// HandleUpload implements POST /upload (multipart form, field "file").
//
// The uploaded bytes are spooled to a temp file so extractors can work from
// disk, extracted to text, and stored. The reported char count is the rune
// count of the extracted text. Extraction failure leaves the store untouched
// and answers 422 with the failure message.
func (h *UploadHandler) HandleUpload(c *gin.Context) {
	endpoint := observability.EndpointUpload

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleUpload")
	defer span.End()

	// Step 1: Pull the file out of the multipart form
	fileHeader, err := c.FormFile("file")
	if err != nil {
		span.RecordError(err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
			m.RecordRequest(endpoint, false)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'file' form field"})
		return
	}
	// Strip any client-supplied path components; the bare name is the key.
	filename := filepath.Base(fileHeader.Filename)
	span.SetAttributes(
		attribute.String("upload.filename", filename),
		attribute.Int64("upload.size_bytes", fileHeader.Size),
	)

	// Step 2: Spool to a temp file for the extractor
	src, err := fileHeader.Open()
	if err != nil {
		h.fail(c, span, endpoint, "failed to read uploaded file")
		return
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "tidegate-upload-*")
	if err != nil {
		h.fail(c, span, endpoint, "failed to stage uploaded file")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		h.fail(c, span, endpoint, "failed to stage uploaded file")
		return
	}
	if err := tmp.Close(); err != nil {
		h.fail(c, span, endpoint, "failed to stage uploaded file")
		return
	}

	// Step 3: Extract text
	text, err := h.registry.ForFile(filename).Extract(ctx, tmpPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("extraction failed", "filename", filename, "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeExtractionFailure)
			m.RecordRequest(endpoint, false)
		}
		msg := "text extraction failed"
		if errors.Is(err, extract.ErrExtractionFailed) {
			msg = err.Error()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
		return
	}

	// Step 4: Store the document
	h.docs.Put(filename, text)
	chars := utf8.RuneCountInString(text)
	slog.Info("document ingested", "filename", filename, "chars", chars)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(endpoint, true)
	}
	c.JSON(http.StatusOK, datatypes.UploadResponse{
		Message:  "file uploaded and processed successfully",
		Filename: filename,
		Chars:    chars,
	})
}

func (h *UploadHandler) fail(c *gin.Context, span trace.Span, endpoint observability.Endpoint, msg string) {
	span.SetStatus(codes.Error, msg)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, observability.ErrorCodeInternal)
		m.RecordRequest(endpoint, false)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
