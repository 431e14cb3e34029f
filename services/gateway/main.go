// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tidegate/tidegate/pkg/logging"
	"github.com/tidegate/tidegate/services/extract"
	"github.com/tidegate/tidegate/services/gateway/composer"
	"github.com/tidegate/tidegate/services/gateway/middleware"
	"github.com/tidegate/tidegate/services/gateway/observability"
	"github.com/tidegate/tidegate/services/gateway/relay"
	"github.com/tidegate/tidegate/services/gateway/routes"
	"github.com/tidegate/tidegate/services/gateway/store"
	"github.com/tidegate/tidegate/services/inference"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

const defaultModel = "llama3.2"

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// No collector configured; tracing stays on the no-op provider.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("tidegate-gateway")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func pacingFromEnv() time.Duration {
	raw := os.Getenv("GATEWAY_PACING_MS")
	if raw == "" {
		return relay.DefaultPacing
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		slog.Warn("GATEWAY_PACING_MS is invalid, using default", "value", raw)
		return relay.DefaultPacing
	}
	return time.Duration(ms) * time.Millisecond
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8000"
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("GATEWAY_LOG_LEVEL")),
		LogDir:  os.Getenv("GATEWAY_LOG_DIR"),
		Service: "gateway",
		JSON:    true,
	})
	defer logger.Close()
	logger.SetAsDefault()

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	backendURL := os.Getenv("OLLAMA_BASE_URL")
	if backendURL == "" {
		backendURL = "http://localhost:11434"
		slog.Warn("OLLAMA_BASE_URL not set, defaulting", "base_url", backendURL)
	}
	client, err := inference.NewOllamaClient(backendURL)
	if err != nil {
		log.Fatalf("Failed to initialize inference client: %v", err)
	}

	model := os.Getenv("GATEWAY_DEFAULT_MODEL")
	if model == "" {
		model = defaultModel
		slog.Warn("GATEWAY_DEFAULT_MODEL not set, defaulting", "model", model)
	}

	sessions := store.NewSessionStore()
	documents := store.NewDocumentStore()
	comp := composer.New(documents)
	rel := relay.New(sessions, comp, client, pacingFromEnv())
	extractors := extract.NewRegistry(os.Getenv("EXTRACTOR_SERVICE_URL"))

	router := gin.Default()
	router.Use(otelgin.Middleware("tidegate-gateway"))
	router.Use(middleware.CORS(os.Getenv("GATEWAY_ALLOWED_ORIGINS")))

	routes.SetupRoutes(router, routes.Deps{
		Sessions:     sessions,
		Documents:    documents,
		Relay:        rel,
		Client:       client,
		Extractors:   extractors,
		DefaultModel: model,
	})

	log.Println("Starting the gateway server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
