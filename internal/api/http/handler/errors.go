package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/crooked-keys/internal/api/http/middleware"
	"github.com/EternisAI/crooked-keys/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const issueLimitMessage = "Too many VPN config requests, try again in an hour"

// respondLimited answers a refusal from the issuance limiter. It reports
// false when err is some other error.
func respondLimited(c *gin.Context, err error) bool {
	var limitErr *ratelimit.LimitError
	if !errors.As(err, &limitErr) {
		return false
	}
	c.Header(middleware.HeaderRetryAfter, strconv.Itoa(middleware.Seconds(limitErr.RetryAfter)))
	c.JSON(http.StatusTooManyRequests, gin.H{"error": issueLimitMessage})
	return true
}

// respondInternal logs the full error and answers with a generic message.
func respondInternal(c *gin.Context, logMsg string, err error, body any, attrs ...any) {
	slog.Error(logMsg, append([]any{"error", err}, attrs...)...)
	c.JSON(http.StatusInternalServerError, body)
}
