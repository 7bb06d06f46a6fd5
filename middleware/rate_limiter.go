package middleware

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// RateLimiter throttles mutating booking actions with a shared TTL-bucketed
// counter in Redis, keyed by actor and action, so the limit holds across
// instances and restarts. Redis errors fail open.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	log    *zap.Logger
}

func NewRateLimiter(rdb *redis.Client, limit int64, window time.Duration, log *zap.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, log: log}
}

func (r *RateLimiter) Limit(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if r.rdb == nil {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", action, actorKey(c))
		ctx := c.UserContext()

		count, err := r.rdb.Incr(ctx, key).Result()
		if err != nil {
			r.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			r.rdb.Expire(ctx, key, r.window)
		}
		if count > r.limit {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Try again later.",
			})
		}
		return c.Next()
	}
}

// actorKey prefers the authenticated user id and falls back to the client IP
// for unauthenticated routes.
func actorKey(c *fiber.Ctx) string {
	if token, ok := c.Locals("user").(*jwt.Token); ok {
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if id, ok := claims["user_id"].(string); ok && id != "" {
				return id
			}
		}
	}
	return c.IP()
}
