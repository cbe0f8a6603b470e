package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type StatusHandler struct {
	version string
	started time.Time
}

func NewStatusHandler(version string) *StatusHandler {
	return &StatusHandler{version: version, started: time.Now()}
}

// HandleHealth handles GET /api/health
func (h *StatusHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now(),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// HandleRoot handles GET /
func (h *StatusHandler) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "CV Review Generator API",
		"version": h.version,
		"endpoints": []string{
			"POST /api/review",
			"POST /api/premium/interview-prep",
			"POST /api/premium/industry-optimize",
			"POST /api/chatgpt/review-summary",
			"GET /api/health",
			"GET /metrics",
		},
	})
}
