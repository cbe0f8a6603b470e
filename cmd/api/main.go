package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/a-abukar/cv-review-generator/internal/config"
	"github.com/a-abukar/cv-review-generator/internal/handlers"
	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/repositories"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal("❌ Invalid configuration", err)
	}
	logger.Info("✅ Config loaded successfully")

	overrides, err := config.LoadFeatureOverrides(cfg.Features.TablePath)
	if err != nil {
		fatal("❌ Failed to load feature table", err)
	}
	features := services.NewFeatureTable(cfg.Gemini.Model, overrides)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(ctx, services.GeminiOptions{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
	}, logger)
	if err != nil {
		fatal("❌ Failed to initialize Gemini AI", err)
	}
	logger.Info("✅ Gemini AI initialized successfully", "model", cfg.Gemini.Model)

	generator := services.NewGenerationClient(geminiService, services.GenerationOptions{
		DefaultDeadline:     cfg.Generation.Timeout,
		RequestsPerSecond:   cfg.Generation.RequestsPerSecond,
		Burst:               cfg.Generation.Burst,
		BreakerEnabled:      cfg.Generation.BreakerEnabled,
		BreakerMinRequests:  cfg.Generation.BreakerMinRequests,
		BreakerFailureRatio: cfg.Generation.BreakerFailureRatio,
		BreakerOpenTimeout:  cfg.Generation.BreakerOpenTimeout,
	}, m, logger)

	var staging services.StagingService
	if cfg.Staging.Mode == config.StagingDisk {
		staging = services.NewStagingService(cfg.Staging.Path, logger)
		if err := staging.EnsureUploadDir(); err != nil {
			fatal("❌ Failed to create upload directory", err)
		}
	}

	reviews := services.NewReviewService(
		services.NewPDFParserService(logger),
		staging,
		features,
		generator,
		services.ReviewOptions{
			MaxFileSize: cfg.Upload.MaxFileSize,
			Extract: models.ExtractOptions{
				MaxPages:      cfg.Extraction.MaxPages,
				MaxChars:      cfg.Extraction.MaxChars,
				FirstPageOnly: cfg.Extraction.FirstPageOnly,
			},
			GenerationDeadline: cfg.Generation.Timeout,
		},
		m,
		logger,
	)
	logger.Info("✅ Services initialized successfully", "staging", cfg.Staging.Mode)

	generalLimiter := services.NewSlidingWindowLimiter(services.RateLimitPolicy{
		Name:   services.PolicyGeneral,
		Window: cfg.RateLimit.GeneralWindow,
		Limit:  cfg.RateLimit.GeneralLimit,
	})
	summaryLimiter := services.NewSlidingWindowLimiter(services.RateLimitPolicy{
		Name:   services.PolicySummary,
		Window: cfg.RateLimit.SummaryWindow,
		Limit:  cfg.RateLimit.SummaryLimit,
	})
	generalLimiter.StartJanitor(ctx, cfg.RateLimit.JanitorInterval, logger)
	summaryLimiter.StartJanitor(ctx, cfg.RateLimit.JanitorInterval, logger)

	// Request audits are optional and only need a database when enabled
	var auditor services.AuditWorker
	if cfg.Audit.Enabled {
		db, err := config.InitDatabase(cfg)
		if err != nil {
			fatal("❌ Failed to initialize database", err)
		}
		auditor = services.NewAuditWorker(repositories.NewAuditRepository(db), services.AuditWorkerOptions{
			Concurrency:   cfg.Audit.Workers,
			QueueSize:     cfg.Audit.QueueSize,
			Retention:     cfg.Audit.Retention,
			PruneInterval: cfg.Audit.PruneInterval,
		}, m, logger)
		auditor.Start(ctx)
	}

	app := handlers.NewApp(handlers.AppConfig{
		MaxFileSize:    cfg.Upload.MaxFileSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		ProxyHeader:    cfg.Server.ProxyHeader,
		AllowOrigins:   cfg.AllowOriginsList(),
		RequestLog:     true,
	}, handlers.Dependencies{
		Reviews:        reviews,
		GeneralLimiter: generalLimiter,
		SummaryLimiter: summaryLimiter,
		Metrics:        m,
		Auditor:        auditor,
	})
	logger.Info("✅ Handlers initialized")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			logger.Error("❌ Server forced to shutdown", "error", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("🚀 Server starting", "addr", addr)

	if err := app.Listen(addr); err != nil {
		fatal("❌ Failed to start server", err)
	}

	if auditor != nil {
		auditor.Stop()
	}
	logger.Info("✅ Server stopped")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
