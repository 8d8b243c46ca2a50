package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unvios/memory-service/internal/auth"
	"github.com/unvios/memory-service/internal/embedding"
	"github.com/unvios/memory-service/internal/llm"
	"github.com/unvios/memory-service/internal/memory"
	"github.com/unvios/memory-service/internal/server"
	"github.com/unvios/memory-service/internal/storage"
	"github.com/unvios/memory-service/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = ""
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize sessions
	sessionTTL, err := time.ParseDuration(cfg.Auth.SessionTTL)
	if err != nil {
		logger.Fatal("Invalid session TTL", zap.Error(err), zap.String("session_ttl", cfg.Auth.SessionTTL))
	}
	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		Secret:        cfg.Auth.Secret,
		TTL:           sessionTTL,
		CookieName:    cfg.Auth.CookieName,
		SecureCookies: cfg.Auth.SecureCookies || cfg.IsProduction(),
		Production:    cfg.IsProduction(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize sessions", zap.Error(err))
	}

	// Initialize the chat pipeline
	embedder := embedding.NewClient(cfg.Embedding.APIURL, cfg.Embedding.APIKey, logger)
	llmClient := llm.NewClient(cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	chat := memory.NewService(store, embedder, llmClient, cfg.Retrieval, logger)

	// Initialize the HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(store, sessions, chat, logger).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
