package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/bcnelson/hub-acl-manager/internal/api"
	"github.com/bcnelson/hub-acl-manager/internal/config"
	"github.com/bcnelson/hub-acl-manager/internal/hubclient"
	"github.com/bcnelson/hub-acl-manager/internal/logging"
	"github.com/bcnelson/hub-acl-manager/internal/service"
	"github.com/bcnelson/hub-acl-manager/internal/storage/sql"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "err", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}

	if err := logging.Setup(cfg.Log); err != nil {
		log.Fatal("Invalid log configuration", "err", err)
	}

	// Create data directories if needed
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			log.Fatal("Failed to create data directory", "err", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Hub.AccessFile), 0755); err != nil {
		log.Fatal("Failed to create access list directory", "err", err)
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to initialize storage", "err", err)
	}
	defer store.Close()

	log.Info("Using file-backed hub access lists", "file", cfg.Hub.AccessFile)
	client := hubclient.NewFileClient(cfg.Hub.AccessFile)

	svc := service.NewAccessListService(
		store,
		client,
		cfg.Sync.Debounce,
		cfg.Sync.AutoSync,
	)

	router := api.NewRouter(store, svc)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("Starting hub ACL manager", "addr", "http://"+cfg.Server.Addr(),
		"auto_sync", cfg.Sync.AutoSync, "debounce", cfg.Sync.Debounce)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", "err", err)
	}

	log.Info("Server stopped")
}
