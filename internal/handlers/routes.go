package handlers

import (
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

const Version = "1.0.0"

type AppConfig struct {
	MaxFileSize    int64
	RequestTimeout time.Duration
	ProxyHeader    string
	AllowOrigins   []string
	RequestLog     bool
}

type Dependencies struct {
	Reviews        services.ReviewService
	GeneralLimiter *services.SlidingWindowLimiter
	SummaryLimiter *services.SlidingWindowLimiter
	Metrics        *metrics.Metrics
	Auditor        services.AuditWorker
}

// NewApp builds the fiber app with middleware and every route registered.
func NewApp(cfg AppConfig, deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "CV Review Generator API",
		ReadTimeout:  cfg.RequestTimeout + 5*time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		// Oversized uploads must reach the handler to get the 400 envelope.
		BodyLimit:    int(2*cfg.MaxFileSize) + 1024*1024,
		ProxyHeader:  cfg.ProxyHeader,
		ErrorHandler: ErrorHandler,
	})

	app.Use(Observe(deps.Metrics, deps.Auditor))
	app.Use(recover.New())
	app.Use(requestid.New())
	if cfg.RequestLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
			TimeFormat: "2006-01-02 15:04:05",
			Output:     os.Stdout,
		}))
	}

	if len(cfg.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.AllowOrigins, ","),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		}))
	}

	reviewHandler := NewReviewHandler(deps.Reviews, cfg.MaxFileSize)
	summaryHandler := NewSummaryHandler(deps.Reviews)
	statusHandler := NewStatusHandler(Version)

	general := RateLimit(deps.GeneralLimiter, deps.Metrics)
	summary := RateLimit(deps.SummaryLimiter, deps.Metrics)
	withTimeout := func(h fiber.Handler) fiber.Handler {
		if cfg.RequestTimeout <= 0 {
			return h
		}
		return timeout.NewWithContext(h, cfg.RequestTimeout)
	}

	api := app.Group("/api")
	api.Get("/health", statusHandler.HandleHealth)
	api.Post("/review", tag(models.FeatureCVReview), general, withTimeout(reviewHandler.HandleReview))
	api.Post("/premium/interview-prep", tag(models.FeatureInterviewPrep), general, withTimeout(reviewHandler.HandleInterviewPrep))
	api.Post("/premium/industry-optimize", tag(models.FeatureIndustryOptimize), general, withTimeout(reviewHandler.HandleIndustryOptimize))
	api.Post("/chatgpt/review-summary", tag(models.FeatureReviewSummary), summary, withTimeout(summaryHandler.HandleReviewSummary))

	app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	app.Get("/", statusHandler.HandleRoot)

	return app
}

// tag marks the request with its feature for metrics and audits.
func tag(feature models.FeatureKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localFeature, string(feature))
		return c.Next()
	}
}
