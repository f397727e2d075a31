package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewCommandRateLimitMiddleware creates a stricter rate limiting middleware
// for registration and operator messaging. It allows 30 requests per minute
// per IP address (vs 100/min for general endpoints).
func NewCommandRateLimitMiddleware() gin.HandlerFunc {
	return NewRateLimitMiddlewareWithConfig(30, 1*time.Minute)
}

// NewRateLimitMiddlewareWithConfig creates a rate limiting middleware with
// custom configuration
func NewRateLimitMiddlewareWithConfig(limit int64, period time.Duration) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance)
}
