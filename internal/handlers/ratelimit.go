package handlers

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/services"
)

// RateLimit gates a route on the caller's address before any work runs.
func RateLimit(limiter *services.SlidingWindowLimiter, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		quota, ok := limiter.Allow(c.IP())

		c.Set("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining()))
		if !quota.ResetAt.IsZero() {
			c.Set("X-RateLimit-Reset", strconv.FormatInt(quota.ResetAt.Unix(), 10))
		}

		if ok {
			return c.Next()
		}

		m.IncRateLimitRejection(quota.Policy)

		retryAt := quota.ResetAt
		if quota.NextAvailableAt != nil {
			retryAt = *quota.NextAvailableAt
		}
		wait := time.Until(retryAt)
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))

		minutes := int(math.Ceil(wait.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		message := fmt.Sprintf("Too many requests. Please wait %d minutes before trying again.", minutes)
		return writeError(c, services.RateLimitError(message, retryAt), "")
	}
}
