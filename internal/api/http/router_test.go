package http

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/EternisAI/crooked-keys/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(cfg Config, limiter *ratelimit.Limiter) *gin.Engine {
	engine := gin.New()
	SetupRoute(engine, cfg, &Services{APILimiter: limiter, Version: "test"})
	return engine
}

func get(engine *gin.Engine, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSetupRoute_APILimiter(t *testing.T) {
	cfg := Config{Port: 3001, PathPrefix: "/api/crooked-keys"}
	engine := newTestEngine(cfg, ratelimit.New("api", 2, 15*time.Minute))

	w := get(engine, "/api/crooked-keys/health", "203.0.113.7:1000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("RateLimit-Remaining"))
	reset, err := strconv.Atoi(w.Header().Get("RateLimit-Reset"))
	require.NoError(t, err)
	assert.InDelta(t, 900, reset, 5)

	w = get(engine, "/api/crooked-keys/health", "203.0.113.7:1001")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))

	w = get(engine, "/api/crooked-keys/health", "203.0.113.7:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error": "Too many requests, try again later"}`, w.Body.String())
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)

	// Another origin has its own window.
	w = get(engine, "/api/crooked-keys/health", "198.51.100.1:1000")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoute_Metrics(t *testing.T) {
	cfg := Config{Port: 3001, PathPrefix: "/api/crooked-keys", MetricsEnabled: true}
	engine := newTestEngine(cfg, ratelimit.New("api", 1, 15*time.Minute))

	get(engine, "/api/crooked-keys/health", "203.0.113.7:1000")

	for i := 0; i < 3; i++ {
		w := get(engine, "/metrics", "203.0.113.7:1000")
		require.Equal(t, http.StatusOK, w.Code, "metrics sit outside the limited prefix")
		assert.Contains(t, w.Body.String(), "crooked_keys_http_requests_total")
	}
}

func TestSetupRoute_MetricsDisabled(t *testing.T) {
	cfg := Config{Port: 3001, PathPrefix: "/vpn"}
	engine := newTestEngine(cfg, nil)

	assert.Equal(t, http.StatusNotFound, get(engine, "/metrics", "203.0.113.7:1000").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/vpn/health", "203.0.113.7:1000").Code)
	assert.Equal(t, http.StatusNotFound, get(engine, "/api/crooked-keys/health", "203.0.113.7:1000").Code)
}
