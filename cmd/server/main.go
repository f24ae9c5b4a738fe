package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-character-chat/backend/internal/models"
	"ai-character-chat/backend/pkg/config"
	"ai-character-chat/backend/pkg/di"
	"ai-character-chat/backend/pkg/logger"
	"ai-character-chat/backend/pkg/router"
	"ai-character-chat/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting application", "version", os.Getenv("APP_VERSION"))

	// Observability
	shutdownTracing := observability.SetupTracing("character-chat")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.Character{}, &models.ChatMessage{}); err != nil {
		log.LogError(err, "failed to migrate database")
		os.Exit(1)
	}

	// Composite index covering the recency-window query
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_char_created ON chat_messages(character_id, created_at)").Error; err != nil {
		log.LogError(err, "failed to create message index", "index", "idx_messages_char_created")
	}

	// Initialize dependency injection container
	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "failed to initialize dependency container")
		os.Exit(1)
	}

	// Initialize and setup router
	r := router.New(container, cfg)

	// Add OpenAPI validation if a schema file is available; must run
	// before routes are registered so the middleware applies to them
	if schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH"); schemaPath != "" {
		r.AddOpenAPIValidation(schemaPath)
	}

	r.SetupRoutes()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server failed to start")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "server forced to shutdown")
	}

	log.Info("server exited gracefully")
}
