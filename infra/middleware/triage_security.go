package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// SecurityHeaders adds browser hardening headers to API responses.
func SecurityHeaders(production bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if production {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		return c.Next()
	}
}

// Limiter is satisfied by *ratelimit.SlidingWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
	Limit() int
}

// RateLimit rejects callers that exceed limiter, keyed by operator when
// authenticated and by client IP otherwise.
func RateLimit(limiter Limiter, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if op, ok := c.Locals("operator").(string); ok && op != "" {
			key = op
		}

		allowed, wait := limiter.Allow(c.UserContext(), scope+":"+key)
		c.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		if !allowed {
			retry := int(math.Ceil(wait.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return apperr.New(apperr.CodeRateLimited, "too many requests", fiber.StatusTooManyRequests).
				WithDetail("retry_after", retry)
		}
		return c.Next()
	}
}
