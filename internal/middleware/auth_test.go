package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"notico/internal/middleware"
)

func authRouter(keys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(keys))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestAuth(t *testing.T) {
	t.Parallel()

	keys := []string{"key-one", "key-two"}

	t.Run("accepts valid X-API-Key", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-API-Key", "key-two")
		rec := httptest.NewRecorder()
		authRouter(keys).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts bearer token fallback", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer key-one")
		rec := httptest.NewRecorder()
		authRouter(keys).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects missing key", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		authRouter(keys).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unknown key", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()
		authRouter(keys).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	newRouter := func(capture *string) *gin.Engine {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(middleware.RequestID())
		r.GET("/ping", func(c *gin.Context) {
			*capture = middleware.GetRequestID(c)
			c.Status(http.StatusOK)
		})
		return r
	}

	t.Run("generates an ID when absent", func(t *testing.T) {
		t.Parallel()

		var captured string
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rec, req)

		require.NotEmpty(t, captured)
		require.Equal(t, captured, rec.Header().Get("X-Request-ID"))
	})

	t.Run("preserves an inbound ID", func(t *testing.T) {
		t.Parallel()

		var captured string
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-ID", "trace-123")
		rec := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rec, req)

		require.Equal(t, "trace-123", captured)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	rl := middleware.NewRateLimiter(1, 2)
	defer rl.Stop()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	// burst of 2, then throttled
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
