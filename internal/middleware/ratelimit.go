package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitMiddleware allows limit requests per window per caller, keyed by
// actor when authenticated and by IP otherwise. Redis errors fail open.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration, log *zap.Logger) fiber.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return func(c *fiber.Ctx) error {
		if rdb == nil || limit <= 0 {
			return c.Next()
		}

		who := c.IP()
		if a := GetActor(c); a.ID != uuid.Nil {
			who = a.ID.String()
		}
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("rl:%s:%d", who, bucket)

		ctx := c.UserContext()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Debug("rate limit unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprint(int(window.Seconds())))
			return Reject(c, fiber.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		}
		return c.Next()
	}
}
