package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"zeelink/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when the counter store is down.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoLimiterStore = errors.New("rate limit store is not configured")

// rateLimitEnforced is false for local and test runs, where every request is allowed.
func rateLimitEnforced() bool {
	switch os.Getenv("APP_ENV") {
	case "", "development", "test":
		return false
	}
	return true
}

func rateLimitKey(resource, subject string) string {
	return "rl:" + resource + ":" + subject
}

// CheckRateLimit counts one hit for subject on resource in a fixed window
// and reports whether it is within limit.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, subject string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := hit(ctx, rdb, rateLimitKey(resource, subject), limit, window)
	return allowed, err
}

// hit increments the window counter and returns the time left in the window.
func hit(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if !rateLimitEnforced() {
		return true, 0, nil
	}
	if rdb == nil {
		return false, 0, errNoLimiterStore
	}

	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		count = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return count.Val() <= int64(limit), ttl.Val(), nil
}

// RateLimit allows limit requests per window for each caller, keyed by the
// signed-in identity when there is one and by IP otherwise. name labels the
// counter; it defaults to the request path.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit FailPolicy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if id, ok := c.Locals("identityID").(string); ok && id != "" {
			subject = "identity:" + id
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, retryIn, err := hit(c.UserContext(), rdb, rateLimitKey(resource, subject), limit, window)
		switch {
		case err != nil && policy == FailClosed:
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
				slog.String("resource", resource), slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Rate limiting is unavailable, try again shortly",
				Code:  models.CodeRemoteFailure,
			})
		case err != nil:
			return c.Next()
		case !allowed:
			if retryIn > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retryIn.Round(time.Second).Seconds())))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please slow down",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
