package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/config"
	redisx "github.com/kg-components/storefront/internal/infrastructure/database/redis"
	"github.com/sirupsen/logrus"
)

const rateWindow = time.Minute

// RateLimit allows cfg.Security.RateLimitPerMinute requests per client IP in
// a fixed one-minute window. Without redis, or when redis fails, requests
// pass.
func RateLimit(cfg *config.Config, cache *redisx.Client, log logrus.FieldLogger) gin.HandlerFunc {
	limit := cfg.Security.RateLimitPerMinute
	if cache == nil || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		window := time.Now().Truncate(rateWindow)
		key := fmt.Sprintf("rate_limit:%s:%d", c.ClientIP(), window.Unix())

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		rdb := cache.GetClient()
		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rateWindow)
		if _, err := pipe.Exec(ctx); err != nil {
			log.WithError(err).Warn("rate limit check failed")
			c.Next()
			return
		}

		current := int(incr.Val())
		remaining := limit - current
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(window.Add(rateWindow).Unix(), 10))

		if current > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": int(time.Until(window.Add(rateWindow)).Seconds()) + 1,
			})
			return
		}
		c.Next()
	}
}
