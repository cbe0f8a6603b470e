package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

const (
	localFeature = "feature"
	localOutcome = "outcome"
)

// StatusFor maps a pipeline error kind onto its HTTP status.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindRateLimit:
		return fiber.StatusTooManyRequests
	case services.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as the JSON error envelope. failure is the message used for
// 500 responses; the stage-specific reason goes into details.
func writeError(c *fiber.Ctx, err error, failure string) error {
	kind := services.KindOf(err)
	status := StatusFor(kind)
	c.Locals(localOutcome, string(kind))

	var pe *services.PipelineError
	if !errors.As(err, &pe) {
		slog.Error("❌ Unhandled pipeline error", "path", c.Path(), "error", err)
		return c.Status(status).JSON(models.ErrorResponse{Error: failure})
	}

	switch kind {
	case services.KindValidation, services.KindTimeout:
		return c.Status(status).JSON(models.ErrorResponse{Error: pe.Message})
	case services.KindRateLimit:
		return c.Status(status).JSON(models.RateLimitResponse{
			Error:             pe.Message,
			NextAvailableTime: pe.RetryAt.UnixMilli(),
		})
	}

	slog.Error("❌ Request failed", "path", c.Path(), "kind", kind, "error", err)

	details := pe.Message
	if kind == services.KindUpstream && pe.Cause != nil {
		details = pe.Cause.Error()
	}
	return c.Status(status).JSON(models.ErrorResponse{Error: failure, Details: details})
}

// ErrorHandler is the catch-all for errors that escape a handler. Every failure still
// leaves as a JSON envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var pe *services.PipelineError
	if errors.As(err, &pe) {
		return writeError(c, err, "Something went wrong!")
	}

	code := fiber.StatusInternalServerError
	message := "Something went wrong!"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	switch code {
	case fiber.StatusRequestTimeout, fiber.StatusGatewayTimeout:
		code = fiber.StatusGatewayTimeout
		message = "Request timeout - The operation took too long to complete"
		c.Locals(localOutcome, string(services.KindTimeout))
	case fiber.StatusRequestEntityTooLarge:
		code = fiber.StatusBadRequest
		message = "File too large."
		c.Locals(localOutcome, string(services.KindValidation))
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("❌ Unhandled error", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(models.ErrorResponse{Error: message})
}
