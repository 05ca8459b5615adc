package middleware

import (
	"context"
	"strconv"
	"time"

	redisStore "lightning-timesheet/internal/adapter/storage/redis"
	"lightning-timesheet/pkg/apperror"
	"lightning-timesheet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Limiter counts requests against a key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule caps one endpoint group.
type RateLimitRule struct {
	Group  string
	Limit  int64
	Window time.Duration
}

var (
	SessionRule = RateLimitRule{Group: "session", Limit: 30, Window: time.Minute}
	SettleRule  = RateLimitRule{Group: "settle", Limit: 10, Window: time.Minute}
	ReadRule    = RateLimitRule{Group: "read", Limit: 120, Window: time.Minute}
)

// RateLimiter enforces rule per caller. When the limiter itself fails the
// request is let through and the failure logged.
func RateLimiter(limiter Limiter, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := callerKey(c) + ":" + rule.Group

		res, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", rule.Group).Msg("rate limiter unavailable, request allowed")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt, 10))

		if res.Allowed {
			c.Next()
			return
		}

		h.Set("Retry-After", strconv.FormatInt(max(res.ResetAt-time.Now().Unix(), 1), 10))
		response.Error(c, apperror.ErrRateLimitExceeded())
		c.Abort()
	}
}

// callerKey keys limits by user when UserIdentity ran, else by client IP.
func callerKey(c *gin.Context) string {
	if uid := c.GetString(CtxUserID); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}
