// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidegate/tidegate/services/gateway/store"
)

func ListSessions(sessions *store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Debug("Received request to list sessions")
		c.JSON(http.StatusOK, gin.H{"sessions": sessions.List()})
	}
}

// GetSessionHistory returns the ordered turns of one session. The store is
// permissive about unknown ids elsewhere, but reading one is answered with
// 404 so clients can tell a typo from an empty conversation.
func GetSessionHistory(sessions *store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		history := sessions.Snapshot(id)
		if history == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"history":    history,
		})
	}
}

func ListDocuments(docs *store.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Debug("Received request to list documents")
		c.JSON(http.StatusOK, gin.H{"documents": docs.List()})
	}
}

// HealthCheck reports process liveness. No dependencies are probed; the
// backend being down is a per-request condition, not a gateway fault.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
