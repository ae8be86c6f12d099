package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/expense-insights/internal/api/handlers"
	"github.com/dvloznov/expense-insights/internal/api/middleware"
	"github.com/dvloznov/expense-insights/internal/config"
	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/expense-insights/internal/infra/bigquery"
	"github.com/dvloznov/expense-insights/internal/jobs"
	"github.com/dvloznov/expense-insights/internal/jobs/inmemory"
	"github.com/dvloznov/expense-insights/internal/logger"
	"github.com/dvloznov/expense-insights/internal/narrative"
	"github.com/dvloznov/expense-insights/internal/pipeline"
	"github.com/dvloznov/expense-insights/internal/session"
	"github.com/dvloznov/expense-insights/internal/source"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	leveled, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}
	log = leveled

	rules := config.DefaultParseRules()
	if cfg.ParseRulesFile != "" {
		if rules, err = config.LoadParseRules(cfg.ParseRulesFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to load parse rules")
		}
	}

	ctx := context.Background()

	// Cloud backends. The storage client is created on the first gs:// request.
	objects := gcsuploader.NewLazyStore()
	defer objects.Close()
	loader := &source.Loader{Objects: objects}
	if cfg.ReportBucket == "" {
		log.Info().Msg("GCS_REPORT_BUCKET not set - report export is disabled")
	}
	if cfg.BigQueryProject != "" {
		warehouse, err := infraBQ.NewReader(ctx, cfg.BigQueryProject)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery reader")
		}
		defer warehouse.Close()
		loader.Warehouse = warehouse
	}

	// Narrative generator
	var generator narrative.Generator
	if cfg.NarrativeEnabled() {
		gemini, err := narrative.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create narrative generator")
		}
		generator = gemini
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set - narrative generation is disabled")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	runner := &jobs.NarrativeRunner{
		Generator: generator,
		Timeout:   cfg.NarrativeTimeout,
		Exporter:  loader,
		Bucket:    cfg.ReportBucket,
	}
	if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.JobWorkers).Msg("Job workers started")

	// Session sweeper
	sessions := session.NewStore(cfg.SessionTTL)
	if cfg.SessionTTL > 0 {
		go func() {
			ticker := time.NewTicker(cfg.SessionTTL / 4)
			defer ticker.Stop()
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-ticker.C:
					if n := sessions.Sweep(); n > 0 {
						log.Info().Int("removed", n).Msg("Expired sessions removed")
					}
				}
			}
		}()
	}

	// Initialize handlers
	sessionsHandler := handlers.NewSessionsHandler(sessions, pipeline.NewParser(rules), loader, jobQueue, log)
	sessionsHandler.NarrativeEnabled = generator != nil
	sessionsHandler.DefaultBudget = domain.Budget(cfg.DefaultBudget)
	sessionsHandler.MaxUploadBytes = cfg.MaxUploadBytes
	jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, log)

	handler := middleware.Chain(
		handlers.NewRouter(sessionsHandler, jobsHandler),
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel in-flight narratives, then wait for workers
	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
