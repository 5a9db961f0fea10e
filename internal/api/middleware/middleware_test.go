package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct{}

func (fakeTokens) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("chatkaro-token"); err == nil {
		return c.Value
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (fakeTokens) Parse(token string) (uint, error) {
	if token == "good" {
		return 42, nil
	}
	return 0, errors.New("invalid or expired token")
}

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = make(map[string]int)
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", NewAuthMiddleware(fakeTokens{}).RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet("user_id").(uint)})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or expired token")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "chatkaro-token", Value: "good"})
	w = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42}`, w.Body.String())
}

func TestRateLimit_PerUser(t *testing.T) {
	limiter := &countingLimiter{}
	rm := NewRateLimitMiddleware(limiter)

	r := gin.New()
	r.GET("/x",
		func(c *gin.Context) { c.Set("user_id", uint(c.GetHeader("X-User")[0]-'0')); c.Next() },
		rm.RateLimit(2, time.Minute),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	get := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-User", user)
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, get("1"))
	assert.Equal(t, http.StatusOK, get("1"))
	assert.Equal(t, http.StatusTooManyRequests, get("1"))
	assert.Equal(t, http.StatusOK, get("2"))
}

func TestRateLimit_RequiresUser(t *testing.T) {
	r := gin.New()
	r.GET("/x", NewRateLimitMiddleware(&countingLimiter{}).RateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitIP_FailsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/x", NewRateLimitMiddleware(&countingLimiter{err: errors.New("redis down")}).RateLimitIP(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitIP_Limits(t *testing.T) {
	r := gin.New()
	r.GET("/x", NewRateLimitMiddleware(&countingLimiter{}).RateLimitIP(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "too many requests")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://chat.example.com/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		origin string
		allow  bool
	}{
		{"https://chat.example.com", true},
		{"http://localhost:5173", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", tc.origin)
		w := serve(r, req)
		if tc.allow {
			assert.Equal(t, tc.origin, w.Header().Get("Access-Control-Allow-Origin"))
		} else {
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
