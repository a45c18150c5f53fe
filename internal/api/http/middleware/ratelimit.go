package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/EternisAI/crooked-keys/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const (
	HeaderRateLimitLimit     = "RateLimit-Limit"
	HeaderRateLimitRemaining = "RateLimit-Remaining"
	HeaderRateLimitReset     = "RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit admits requests per client IP through l and answers 429 with
// message once the origin's window is used up.
func RateLimit(l *ratelimit.Limiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.ClientIP()
		d := l.Allow(origin)
		if !d.ResetAt.IsZero() {
			c.Header(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
			c.Header(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
			c.Header(HeaderRateLimitReset, strconv.Itoa(Seconds(time.Until(d.ResetAt))))
		}

		if !d.Allowed {
			slog.Warn("Rate limit exceeded", "limiter", l.Name(), "client_ip", origin, "path", c.Request.URL.Path)
			c.Header(HeaderRetryAfter, strconv.Itoa(Seconds(d.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": message})
			return
		}
		c.Next()
	}
}

// Seconds rounds d up to whole seconds, never below zero.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
