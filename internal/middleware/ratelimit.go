package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when redis cannot count it.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// hitScript increments a fixed-window counter and starts the window on the
// first hit, atomically.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// limitsDisabled is true for local and test environments.
func limitsDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func rateLimitKey(resource, subject string) string {
	return "rl:" + resource + ":" + subject
}

// CheckRateLimit records one hit by subject against resource and reports
// whether it fits in limit hits per window, plus the hits left.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, subject string, limit int, window time.Duration) (bool, int, error) {
	if limitsDisabled() {
		return true, limit, nil
	}
	if rdb == nil {
		return false, 0, errNoRedis
	}

	n, err := hitScript.Run(ctx, rdb, []string{rateLimitKey(resource, subject)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return n <= int64(limit), max(limit-int(n), 0), nil
}

// RateLimit limits a route to limit requests per window for each user, or
// each IP before login. It lets requests through when redis is down.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit FailPolicy. The counter
// is named after the first name, or the request path.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			subject = fmt.Sprintf("user:%d", uid)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, remaining, err := CheckRateLimit(c.UserContext(), rdb, resource, subject, limit, window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
				slog.String("resource", resource), slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
