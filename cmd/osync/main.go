// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/osync-go/internal/cache"
	"github.com/olegiv/osync-go/internal/config"
	"github.com/olegiv/osync-go/internal/content"
	"github.com/olegiv/osync-go/internal/handler"
	"github.com/olegiv/osync-go/internal/leads"
	"github.com/olegiv/osync-go/internal/logging"
	"github.com/olegiv/osync-go/internal/middleware"
	"github.com/olegiv/osync-go/internal/scheduler"
	"github.com/olegiv/osync-go/internal/store"
	"github.com/olegiv/osync-go/internal/translate"
	"github.com/olegiv/osync-go/internal/version"
	"github.com/olegiv/osync-go/internal/webhook"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// retrySchedule runs the delivery retry pass every minute; due deliveries
// carry their own next_retry_at backoff.
const retrySchedule = "* * * * *"

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "osync - Content Translation Sync Service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_CONTENT_PROJECT_ID   Content store project ID (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_CONTENT_WRITE_TOKEN  Content store write token (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_TRANSLATOR           Translation provider: deepl|openai (default: deepl)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_DEEPL_API_KEY        DeepL API key (required for deepl)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_OPENAI_API_KEY       OpenAI API key (required for openai)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_WEBHOOK_SECRET       Inbound webhook signing secret (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_DB_PATH              SQLite database path (default: ./data/osync.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_SERVER_PORT          Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_ENV                  Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OSYNC_REDIS_URL            Redis URL for the shared segment cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nFor more information, see: https://github.com/olegiv/osync-go\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Printf("osync %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Create version info from build-time injected values
	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Initialize database
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		err = db.Close()
		if err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	// Run migrations
	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the Event Log database
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	eventLogHandler := logging.NewEventLogHandler(textHandler, db)
	logger = slog.New(eventLogHandler)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	queries := store.New(db)

	// Initialize segment cache: Redis when configured, in-process memory
	// otherwise. Redis failure falls back to memory instead of aborting.
	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	var cacher cache.Cacher
	if cfg.UseRedisCache() {
		redisCache, err := cache.NewRedisCache(cache.RedisCacheOptions{
			URL:        cfg.RedisURL,
			Prefix:     cfg.CachePrefix,
			DefaultTTL: cacheTTL,
		})
		if err != nil {
			slog.Warn("Redis unavailable, using in-memory cache", "error", err)
			cacher = cache.NewMemoryCache(cacheTTL)
		} else {
			slog.Info("segment cache initialized", "backend", "redis", "url", cfg.RedisURL)
			cacher = redisCache
		}
	} else {
		slog.Info("segment cache initialized", "backend", "memory", "ttl", cacheTTL)
		cacher = cache.NewMemoryCache(cacheTTL)
	}
	defer func() {
		if err := cacher.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	// Initialize translation provider
	var translator translate.Translator
	switch cfg.TranslatorProvider {
	case config.ProviderDeepL:
		translator = translate.NewDeepL(translate.DeepLOptions{
			BaseURL: cfg.DeepLURL(),
			APIKey:  cfg.DeepLAPIKey,
			RPS:     cfg.TranslateRPS,
			Burst:   cfg.TranslateBurst,
		})
	case config.ProviderOpenAI:
		translator = translate.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	translator = translate.NewCached(translator, cacher)
	slog.Info("translator initialized", "provider", cfg.TranslatorProvider)

	// Initialize content store client
	contentClient := content.NewHTTPClient(content.Config{
		BaseURL:    cfg.ContentBaseURL(),
		Dataset:    cfg.ContentDataset,
		APIVersion: cfg.ContentAPIVersion,
		Token:      cfg.ContentWriteToken,
	})

	// Initialize translation engine
	engine := translate.NewEngine(translate.EngineConfig{
		Content:    contentClient,
		Translator: translator,
		Logger:     logger,
		Targets:    cfg.TargetLanguages,
	})

	// Initialize outbound webhook delivery and lead capture
	deliverer := webhook.NewDeliverer()
	leadService := leads.NewService(contentClient, queries, deliverer, logger)

	// Initialize and start scheduler with the delivery retry worker
	sched := scheduler.New(logger)
	if cfg.RetryEnabled {
		retrier := webhook.NewRetrier(queries, deliverer, logger)
		if err := sched.AddJob(retrySchedule, "webhook-retry", scheduler.JobFunc(retrier.Run)); err != nil {
			return fmt.Errorf("registering retry job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// Initialize handlers
	translateHandler := handler.NewTranslateHandler(engine, contentClient, cfg.WebhookSecret, cfg.IsDevelopment(), logger)
	leadsHandler := handler.NewLeadsHandler(leadService, cfg.IsDevelopment(), logger)
	healthHandler := handler.NewHealthHandler(db, versionInfo)

	// Create router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))                    // Gzip compression with level 5
	r.Use(middleware.Timeout(30 * time.Second)) // 30 second request timeout

	// Security headers middleware (CSP, HSTS, X-Frame-Options, etc.)
	securityConfig := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())
	r.Use(middleware.SecurityHeaders(securityConfig))

	// Health check routes (public)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Translation webhook routes (signature-verified)
	r.Post("/hooks/translate", translateHandler.Document)
	r.Post("/hooks/translate/pages", translateHandler.Document)
	r.Post("/hooks/translate/blog", translateHandler.Blog)

	// Public lead capture routes (browser-facing, CORS-enabled)
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
		r.Post("/leads", leadsHandler.Submit)
		r.Options("/leads", leadsHandler.Preflight)
	})

	r.MethodNotAllowed(handler.MethodNotAllowed)

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Translation fan-out can be slow on large documents
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
