// @title invoicelens API
// @version 1.0
// @description Invoice extraction, normalization and analytics API.
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-KEY
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "invoicelens/docs"
	"invoicelens/internal/config"
	"invoicelens/internal/extractor"
	"invoicelens/internal/extractor/gemini"
	"invoicelens/internal/extractor/geminisdk"
	"invoicelens/internal/handler"
	"invoicelens/internal/middleware"
	"invoicelens/internal/notify/noop"
	sesnotify "invoicelens/internal/notify/ses"
	"invoicelens/internal/pdf"
	"invoicelens/internal/port"
	"invoicelens/internal/repository/postgres"
	"invoicelens/internal/router"
	"invoicelens/internal/service"
	s3storage "invoicelens/internal/storage/s3"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	invoiceRepo := postgres.NewInvoiceRepo(db)
	extractionRepo := postgres.NewExtractionRepo(db)
	metricsRepo := postgres.NewMetricsRepo(db)
	apiKeyRepo := postgres.NewAPIKeyRepo(db)

	// Initialize storage
	storage, err := s3storage.NewStorage(ctx, &cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 storage: %w", err)
	}

	// Initialize extractors
	ext, err := newExtractor(&cfg.Extractor)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(ctx, &cfg.Notify)
	if err != nil {
		return err
	}

	validator, tolerance, err := service.NewIngestValidator(&cfg.Ingest)
	if err != nil {
		return fmt.Errorf("invalid ingest config: %w", err)
	}

	// Initialize services
	invoiceSvc := service.NewInvoiceService(
		invoiceRepo, extractionRepo, storage, ext, pdf.NewInspector(), notifier, validator,
		service.NewInvoiceServiceConfig(cfg, tolerance),
	)
	metricsSvc := service.NewMetricsService(metricsRepo)
	exportSvc := service.NewExportService(invoiceRepo)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, cfg.Auth.StaticAPIKeys)

	// Start the retry queue worker
	worker := service.NewExtractionQueueWorker(invoiceRepo, invoiceSvc, service.ExtractionQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		Concurrency:  cfg.Queue.Concurrency,
		JobTimeout:   cfg.Extractor.ProcessingTimeout(),
	})
	go worker.Start(ctx)

	// Setup router
	r := router.Setup(apiKeySvc, router.Handlers{
		Invoice: handler.NewInvoiceHandler(invoiceSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc),
		Export:  handler.NewExportHandler(exportSvc),
		Health:  handler.NewHealthHandler(db),
	}, router.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		ExtractLimiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	worker.Wait()
	log.Println("Server stopped")
	return nil
}

func newExtractor(cfg *config.ExtractorConfig) (port.Extractor, error) {
	extractor.RegisterProvider(gemini.ProviderName, gemini.Factory)
	extractor.RegisterProvider(geminisdk.ProviderName, geminisdk.Factory)

	prompt := extractor.PromptFor(cfg.Language)
	primary, err := extractor.New(&cfg.Primary, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize primary extractor: %w", err)
	}

	secondaryCfg := cfg.SecondaryConfig()
	if secondaryCfg == nil {
		return primary, nil
	}
	secondary, err := extractor.New(secondaryCfg, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secondary extractor: %w", err)
	}
	log.Printf("Extractor fallback enabled: %s -> %s", cfg.Primary.Provider, secondaryCfg.Provider)
	return extractor.NewFallbackExtractor(
		[]port.Extractor{primary, secondary},
		[]string{cfg.Primary.Provider, secondaryCfg.Provider},
	), nil
}

func newNotifier(ctx context.Context, cfg *config.NotifyConfig) (port.Notifier, error) {
	if cfg.Provider != "ses" {
		return noop.NewNotifier(cfg.BaseURL), nil
	}
	n, err := sesnotify.NewNotifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SES notifier: %w", err)
	}
	return n, nil
}
