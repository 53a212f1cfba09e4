package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cesargomez89/mediacache/internal/app"
	"github.com/cesargomez89/mediacache/internal/catalog"
	"github.com/cesargomez89/mediacache/internal/config"
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/domain"
	httpapp "github.com/cesargomez89/mediacache/internal/http"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/mediadb"
	"github.com/cesargomez89/mediacache/internal/metrics"
	"github.com/cesargomez89/mediacache/internal/store"
	"github.com/cesargomez89/mediacache/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Initialize DB
	db, err := store.Open(store.Options{
		Path:              cfg.DBPath,
		BusyRetryInterval: cfg.BusyRetryInterval,
		BusyMaxAttempts:   cfg.BusyMaxAttempts,
		Logger:            appLogger,
		Metrics:           appMetrics,
	})
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache := mediadb.New(db, appLogger, appMetrics)

	// Initialize Provider Manager
	providers := catalog.NewManager(appLogger)
	if cfg.LibraryDir != "" {
		providers.Register(catalog.NewLocalProvider(cfg.LibraryDir, catalog.DefaultLocalPageSize, appLogger))
	}

	// Initialize Worker
	syncer := app.NewLibrarySyncer(cache, providers, appLogger, appMetrics)
	dispatcher := worker.NewDispatcher()
	dispatcher.Register(domain.JobTypeLibrarySync, &worker.LibrarySyncHandler{Syncer: syncer})
	dispatcher.Register(domain.JobTypePrune, &worker.PruneHandler{Cache: cache})

	w := worker.NewWorker(db, dispatcher, appLogger)
	w.MaxConcurrent = cfg.SyncConcurrency
	w.PollInterval = cfg.SyncPollInterval
	w.Start()
	defer w.Stop()

	// Initialize Services
	jobService := app.NewJobService(db, appLogger)

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Routes
	h := httpapp.NewHandler(cache, jobService, providers, appMetrics, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr, "providers", providers.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
