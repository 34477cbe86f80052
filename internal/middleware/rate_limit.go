package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/logger"
	"dcabot/backend/pkg/redis"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter in Redis
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	action string

	// byUser keys authenticated requests by user instead of IP
	byUser bool
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, action string, byUser bool) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		action: action,
		byUser: byUser,
	}
}

// Limit returns a middleware that limits requests
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		identifier := c.ClientIP()
		if rl.byUser {
			if userID := UserID(c); userID != "" {
				identifier = fmt.Sprintf("user:%s", userID)
			}
		}

		allowed, err := rl.checkRateLimit(c.Request.Context(), redis.RateLimitKey(identifier, rl.action))
		if err != nil {
			// Log error but don't block request
			logger.GetLogger().Warnf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		if !allowed {
			util.AbortWithCustomError(c, http.StatusTooManyRequests,
				util.ErrCodeRateLimit, "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (bool, error) {
	count, err := rl.redis.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	// Set expiration on first request
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, rl.window); err != nil {
			return false, err
		}
	}

	return count <= int64(rl.limit), nil
}

// RateLimit limits the control API per user, or per IP before authentication
func RateLimit(redisClient *redis.Client, limit int) gin.HandlerFunc {
	return NewRateLimiter(redisClient, limit, time.Minute, "general", true).Limit()
}

// WebhookRateLimit limits public webhook deliveries per IP
func WebhookRateLimit(redisClient *redis.Client, limit int) gin.HandlerFunc {
	return NewRateLimiter(redisClient, limit, time.Minute, "webhook", false).Limit()
}
