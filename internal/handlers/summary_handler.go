package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

type SummaryHandler struct {
	reviews services.ReviewService
}

func NewSummaryHandler(reviews services.ReviewService) *SummaryHandler {
	return &SummaryHandler{reviews: reviews}
}

// HandleReviewSummary handles POST /api/chatgpt/review-summary
func (h *SummaryHandler) HandleReviewSummary(c *fiber.Ctx) error {
	var req models.SummaryRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("Invalid request payload"), "")
	}

	report, err := h.reviews.Summarize(c.UserContext(), req)
	if err != nil {
		failure := "Failed to generate review summary"
		if services.IsKind(err, services.KindMalformedResponse) {
			failure = "Failed to parse review summary"
		}
		return writeError(c, err, failure)
	}

	return c.JSON(report)
}
