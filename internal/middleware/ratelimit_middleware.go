// internal/middleware/ratelimit_middleware.go
package middleware

import (
	"context"
	"net/http"

	"delivery-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitMiddleware limits requests per client IP under the given scope.
// When the limiter itself fails the request is let through.
func RateLimitMiddleware(limiter Limiter, scope string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			response.Error(c, http.StatusTooManyRequests, "too many requests", nil)
			return
		}
		c.Next()
	}
}
