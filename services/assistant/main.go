// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/middleware"
	"github.com/AleutianAI/CourseAssistant/services/assistant/observability"
	"github.com/AleutianAI/CourseAssistant/services/assistant/retrieval"
	"github.com/AleutianAI/CourseAssistant/services/assistant/routes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/services"
	"github.com/AleutianAI/CourseAssistant/services/llm"

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

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "assistant-otel-collector:4317"
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
		resource.WithAttributes(semconv.ServiceNameKey.String("course-assistant")))
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

// newWeaviateClient parses WEAVIATE_SERVICE_URL and builds a client.
// Returns nil when the URL is missing or malformed; the service then runs
// without course retrieval (static answers and follow-ups still work).
func newWeaviateClient() *weaviate.Client {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Trim quotes and whitespace in case the container runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running without course retrieval.")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running without course retrieval.",
			"url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	datatypes.EnsureWeaviateSchema(client)
	return client
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		slog.Warn("invalid duration env var, using default", "name", name, "value", raw)
		return def
	}
	return time.Duration(minutes) * time.Minute
}

func main() {
	port := os.Getenv("ASSISTANT_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	// --- Pipeline configuration (embedded defaults + optional override file) ---
	configPath := os.Getenv("ASSISTANT_PIPELINE_CONFIG")
	provider, err := config.NewProvider(configPath)
	if err != nil {
		log.Fatalf("FATAL: could not load pipeline config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if configPath != "" {
		go func() {
			if err := provider.Watch(ctx); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	// --- Relational database for activity feed, clicks, and durable sessions ---
	var db *gorm.DB
	dbPath := os.Getenv("ASSISTANT_DB_PATH")
	if dbPath == "" {
		dbPath = "assistant.db"
	}
	if dbPath != "off" {
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			slog.Error("failed to open database, activity endpoints disabled", "error", err)
			db = nil
		} else if err := datatypes.AutoMigrate(db); err != nil {
			log.Fatalf("FATAL: database migration failed: %v", err)
		}
	}

	// --- Session store ---
	var store conversation.Store
	switch os.Getenv("SESSION_BACKEND") {
	case "gorm":
		if db == nil {
			log.Fatalf("FATAL: SESSION_BACKEND=gorm requires a database")
		}
		store = conversation.NewGormStore(db)
		slog.Info("Using durable session store")
	default:
		store = conversation.NewMemoryStore()
		slog.Info("Using in-memory session store")
	}

	sessionTTL := envDuration("SESSION_TTL_MINUTES", 60*time.Minute)
	janitor := conversation.NewJanitor(store, sessionTTL, 5*time.Minute)
	janitor.OnActive(metrics.SetActiveSessions)
	go janitor.Run(ctx)

	// --- LLM backend ---
	log.Println("Configuring the LLM Client")
	var llmClient llm.LLMClient
	var embeddingClient llm.EmbeddingClient

	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "ollama":
		client, cerr := llm.NewOllamaClient()
		if cerr != nil {
			log.Fatalf("Failed to initialize Ollama client: %v", cerr)
		}
		llmClient, embeddingClient = client, client
		slog.Info("Using Ollama LLM backend")
	case "openai", "":
		client, cerr := llm.NewOpenAIClient()
		if cerr != nil {
			log.Fatalf("Failed to initialize OpenAI client: %v", cerr)
		}
		llmClient, embeddingClient = client, client
		slog.Info("Using OpenAI LLM backend")
	default:
		log.Fatalf("FATAL: unknown LLM_BACKEND_TYPE %q", os.Getenv("LLM_BACKEND_TYPE"))
	}

	// --- Retrieval stack: retrying embedder, badger cache, Weaviate search ---
	var retriever retrieval.CourseRetriever
	if weaviateClient := newWeaviateClient(); weaviateClient != nil {
		embedder := retrieval.Embedder(retrieval.NewRetryingEmbedder(embeddingClient))
		embedder = retrieval.NewMeteredEmbedder(embedder, func(seconds float64) {
			metrics.ObserveUpstream(observability.OpEmbed, seconds)
		})
		cacheDB, cerr := retrieval.OpenEmbeddingCache(os.Getenv("EMBEDDING_CACHE_PATH"))
		if cerr != nil {
			slog.Warn("embedding cache unavailable, embedding every request", "error", cerr)
		} else {
			defer cacheDB.Close()
			embedder = retrieval.NewCachedEmbedder(cacheDB, embedder)
		}
		retriever = retrieval.NewWeaviateCourseRetriever(weaviateClient, embedder)
	}

	svc := services.NewChatService(provider, store, llmClient, retriever, metrics)

	rps := 5.0
	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		if parsed, perr := strconv.ParseFloat(raw, 64); perr == nil && parsed > 0 {
			rps = parsed
		}
	}
	limiter := middleware.NewRateLimiter(rps, int(rps*4))

	router := gin.Default()
	router.Use(otelgin.Middleware("course-assistant"))

	routes.SetupRoutes(router, svc, provider, store, db, metrics,
		os.Getenv("ADMIN_TOKEN"), limiter)

	log.Println("Starting the assistant server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
