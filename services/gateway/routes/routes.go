// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidegate/tidegate/services/extract"
	"github.com/tidegate/tidegate/services/gateway/handlers"
	"github.com/tidegate/tidegate/services/gateway/relay"
	"github.com/tidegate/tidegate/services/gateway/store"
	"github.com/tidegate/tidegate/services/inference"
)

// Deps carries the shared state the routes close over.
type Deps struct {
	Sessions     *store.SessionStore
	Documents    *store.DocumentStore
	Relay        *relay.Relay
	Client       inference.Client
	Extractors   *extract.Registry
	DefaultModel string
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	generateHandler := handlers.NewGenerateHandler(deps.Relay, deps.Client, deps.DefaultModel)
	uploadHandler := handlers.NewUploadHandler(deps.Documents, deps.Extractors)

	// The client-facing surface lives at the root, matching what the web
	// frontend has always called.
	router.POST("/upload", uploadHandler.HandleUpload)
	router.GET("/generate_formatted", generateHandler.HandleGenerateFormatted)
	router.POST("/generate", generateHandler.HandleGenerate)

	// Introspection routes
	router.GET("/documents", handlers.ListDocuments(deps.Documents))
	sessions := router.Group("/sessions")
	{
		sessions.GET("", handlers.ListSessions(deps.Sessions))
		sessions.GET("/:sessionId/history", handlers.GetSessionHistory(deps.Sessions))
	}
}
