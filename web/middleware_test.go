package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func hit(router http.Handler, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = ip + ":12345"
	router.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)

	require.NotNil(t, rl)
	assert.Equal(t, rate.Limit(10), rl.rate)
	assert.Equal(t, 20, rl.burst)
	assert.NotNil(t, rl.limiters)
}

func TestGetLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)

	limiter1 := rl.getLimiter("192.168.1.1")
	require.NotNil(t, limiter1)
	assert.Same(t, limiter1, rl.getLimiter("192.168.1.1"))
	assert.NotSame(t, limiter1, rl.getLimiter("192.168.1.2"))
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		requestCount   int
		rateLimit      rate.Limit
		burst          int
		expectedStatus int
	}{
		{"under limit", 5, rate.Limit(10), 10, http.StatusOK},
		{"at burst limit", 10, rate.Limit(1), 10, http.StatusOK},
		{"over limit", 15, rate.Limit(1), 10, http.StatusTooManyRequests},
		{"unlimited", 50, rate.Inf, 0, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := limitedRouter(NewRateLimiter(tt.rateLimit, tt.burst))

			var lastStatus int
			for i := 0; i < tt.requestCount; i++ {
				lastStatus = hit(router, "192.168.1.100").Code
			}
			assert.Equal(t, tt.expectedStatus, lastStatus)
		})
	}
}

func TestRateLimitMiddlewareErrorResponse(t *testing.T) {
	router := limitedRouter(NewRateLimiter(rate.Limit(1), 1))

	assert.Equal(t, http.StatusOK, hit(router, "192.168.1.100").Code)

	w := hit(router, "192.168.1.100")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRateLimitMiddlewareDifferentIPs(t *testing.T) {
	router := limitedRouter(NewRateLimiter(rate.Limit(1), 1))

	assert.Equal(t, http.StatusOK, hit(router, "192.168.1.1").Code)
	assert.Equal(t, http.StatusOK, hit(router, "192.168.1.2").Code)
}

func TestRateLimitMiddlewareRecovery(t *testing.T) {
	router := limitedRouter(NewRateLimiter(rate.Limit(20), 1))

	hit(router, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "192.168.1.1").Code)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, http.StatusOK, hit(router, "192.168.1.1").Code)
}

func TestPruneIdleLimiters(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	now = now.Add(10 * time.Minute)
	rl.getLimiter("10.0.0.2")

	assert.Equal(t, 1, rl.prune(5*time.Minute))

	rl.mu.Lock()
	_, stale := rl.limiters["10.0.0.1"]
	_, fresh := rl.limiters["10.0.0.2"]
	rl.mu.Unlock()
	assert.False(t, stale)
	assert.True(t, fresh)

	assert.Equal(t, 0, rl.prune(5*time.Minute))
}

func TestCleanupStopsWithContext(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Cleanup(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cleanup did not return after cancel")
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		maxBytes       int64
		bodySize       int
		expectedStatus int
	}{
		{"under limit", 1024, 512, http.StatusOK},
		{"at limit", 1024, 1024, http.StatusOK},
		{"over limit by content-length", 1024, 2048, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(MaxBytesMiddleware(tt.maxBytes))
			router.POST("/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/test", strings.NewReader(strings.Repeat("x", tt.bodySize)))
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusRequestEntityTooLarge {
				assert.Contains(t, w.Body.String(), "Request body too large")
			}
		})
	}
}
