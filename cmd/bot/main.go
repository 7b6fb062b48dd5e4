package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentops/social-listening-bot/internal/config"
	"github.com/contentops/social-listening-bot/internal/drafts"
	"github.com/contentops/social-listening-bot/internal/ingest"
	"github.com/contentops/social-listening-bot/internal/llm"
	"github.com/contentops/social-listening-bot/internal/notifications"
	"github.com/contentops/social-listening-bot/internal/router"
	"github.com/contentops/social-listening-bot/internal/scheduler"
	"github.com/contentops/social-listening-bot/internal/storage"
	"github.com/contentops/social-listening-bot/internal/synthesis"
	"github.com/contentops/social-listening-bot/internal/triage"
	"github.com/contentops/social-listening-bot/internal/workspace"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	logrus.Info("Starting Social Listening Bot")

	// Initialize workspace and completion clients
	ws := workspace.NewClient(cfg.WorkspaceToken)
	completions := llm.NewClient(cfg.OpenAIAPIKey)

	// Initialize archive storage (optional)
	var archive storage.ArchiveInterface
	if cfg.StorageAccount != "" {
		azureArchive, err := storage.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive storage: %v", err)
		}
		archive = azureArchive
	} else {
		logrus.Info("No storage account configured, mention payloads will not be archived")
	}

	// Initialize notification service
	notificationService := notifications.NewService(cfg)

	// The router introspects queue schemas once at startup; a misconfigured
	// queue is a fatal configuration error, not a per-record one.
	rt, err := router.New(context.Background(), ws, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize router: %v", err)
	}

	// Initialize pipeline services
	classifier := triage.NewClassifier(completions, cfg.ModelTriage, cfg.ModelHigh)
	ingestService := ingest.NewService(cfg, ws, archive)
	triageService := triage.NewService(cfg, ws, classifier, rt, notificationService)
	synthesisService := synthesis.NewService(cfg, ws, completions)
	draftsService := drafts.NewService(cfg, ws, completions)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg,
		ingestService.Run, triageService.Run, synthesisService.Run, draftsService.Run)

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Metrics endpoint
	r.HandleFunc("/metrics", metricsHandler(triageService)).Methods("GET")

	// Manual trigger endpoints (for testing)
	r.HandleFunc("/trigger/ingest", triggerHandler("ingest", ingestService.Run)).Methods("POST")
	r.HandleFunc("/trigger/triage", triggerHandler("triage", triageService.Run)).Methods("POST")
	r.HandleFunc("/trigger/synthesis", triggerHandler("synthesis", synthesisService.Run)).Methods("POST")
	r.HandleFunc("/trigger/drafts", triggerHandler("drafts", draftsService.Run)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(triageService *triage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := triageService.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics))
	}
}

func triggerHandler(name string, job scheduler.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := job(context.Background()); err != nil {
				logrus.Errorf("Manual %s trigger failed: %v", name, err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"message":"%s run triggered"}`, name)))
	}
}
