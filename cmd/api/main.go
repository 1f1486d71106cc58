// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/checkpoint"
	"github.com/capitalize-ai/conversation-engine/internal/config"
	"github.com/capitalize-ai/conversation-engine/internal/graph"
	"github.com/capitalize-ai/conversation-engine/internal/handler"
	"github.com/capitalize-ai/conversation-engine/internal/llm"
	"github.com/capitalize-ai/conversation-engine/internal/middleware"
	"github.com/capitalize-ai/conversation-engine/internal/session"
	"github.com/capitalize-ai/conversation-engine/internal/summary"
	"github.com/capitalize-ai/conversation-engine/internal/tool"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
	"github.com/capitalize-ai/conversation-engine/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting conversation engine")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "conversation-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Checkpoint store: NATS JetStream KV when configured, in-memory otherwise
	var checkpoints checkpoint.Store
	var connChecker handler.ConnChecker
	if cfg.NATSURL != "" {
		natsStore, err := checkpoint.ConnectNATS(ctx, checkpoint.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			Bucket:   cfg.CheckpointBucket,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsStore.Close()
		checkpoints = natsStore
		connChecker = natsStore
	} else {
		log.Warn("NATS_URL not set, using in-memory checkpoints")
		checkpoints = checkpoint.NewMemoryStore()
	}

	// Initialize LLM client
	provider := llm.Provider(cfg.DefaultLLM)
	apiKey := cfg.AnthropicAPIKey
	if provider == llm.ProviderOpenAI || (apiKey == "" && cfg.OpenAIAPIKey != "") {
		provider = llm.ProviderOpenAI
		apiKey = cfg.OpenAIAPIKey
	}
	llmClient, err := llm.NewClient(provider, apiKey)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	log.Info("LLM client initialized", zap.String("provider", llmClient.Name()))

	// Tool registry
	registry := tool.NewRegistry()
	if cfg.TavilyAPIKey != "" {
		if err := registry.Register(tool.NewSearchTool(cfg.TavilyAPIKey, cfg.MaxSearchResults)); err != nil {
			log.Error("failed to register search tool", zap.Error(err))
			os.Exit(1)
		}
	} else {
		log.Warn("TAVILY_API_KEY not set, web search disabled")
	}

	var toolDefs []llm.ToolDefinition
	for _, t := range registry.List() {
		toolDefs = append(toolDefs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}

	// Conversation graph
	invoker := llm.NewInvoker(llmClient,
		llm.WithModel(cfg.ModelName),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
		llm.WithTools(toolDefs),
	)
	dispatcher := tool.NewDispatcher(registry, cfg.MaxParallelTools, log)
	g := graph.New(invoker, dispatcher, registry.Len() > 0, log)

	// Summary subsystem
	engine := summary.NewEngine(llmClient, cfg.ModelName, cfg.SummaryWindow, log)
	summaryStore, err := summary.NewFileStore(cfg.SummaryDir)
	if err != nil {
		log.Error("failed to create summary store", zap.Error(err))
		os.Exit(1)
	}

	// Session facade
	sessionOpts := []session.Option{
		session.WithDefaultThread(cfg.DefaultThreadID),
		session.WithMaxInputChars(cfg.MaxInputChars),
	}
	if cfg.AutoSummarize {
		sessionOpts = append(sessionOpts, session.WithAutoSummarize(cfg.SummaryThreshold))
	}
	sess := session.New(g, checkpoints, engine, summaryStore, log, sessionOpts...)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(connChecker)
	threadHandler := handler.NewThreadHandler(sess, log)
	summaryHandler := handler.NewSummaryHandler(sess, log)
	streamHandler := handler.NewStreamHandler(sess, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Threads
		r.Route("/threads/{id}", func(r chi.Router) {
			r.Delete("/", threadHandler.ClearThread)

			// Messages
			r.Get("/messages", threadHandler.GetHistory)
			r.Post("/messages", threadHandler.SendMessage)

			// Streaming
			r.Post("/stream", streamHandler.StreamMessage)

			// Per-thread summary
			r.Get("/summary", summaryHandler.GetSummary)
			r.Post("/summary", summaryHandler.GenerateSummary)
			r.Put("/summary", summaryHandler.UpdateSummary)
			r.Delete("/summary", summaryHandler.DeleteSummary)
		})

		// Summaries
		r.Get("/summaries", summaryHandler.ListSummaries)
		r.Get("/summaries/search", summaryHandler.SearchSummaries)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
