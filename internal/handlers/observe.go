package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

// Observe records request metrics and, when auditor is set, enqueues a request audit.
// Errors from later handlers are rendered here so the final status is known.
func Observe(m *metrics.Metrics, auditor services.AuditWorker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		m.ObserveRequest(c.Method(), c.Route().Path, status, elapsed)

		feature, _ := c.Locals(localFeature).(string)
		if auditor == nil || feature == "" {
			return nil
		}

		outcome, _ := c.Locals(localOutcome).(string)
		if outcome == "" {
			outcome = "success"
			if status >= fiber.StatusBadRequest {
				outcome = "error"
			}
		}
		requestID, _ := c.Locals("requestid").(string)

		auditor.Enqueue(models.RequestAudit{
			RequestID:  requestID,
			ClientKey:  c.IP(),
			Feature:    feature,
			Method:     c.Method(),
			Path:       c.Path(),
			Status:     status,
			Outcome:    outcome,
			DurationMs: elapsed.Milliseconds(),
			CreatedAt:  start,
		})
		return nil
	}
}
