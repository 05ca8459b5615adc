package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lightning-timesheet/internal/adapter/http/middleware"
	redisStore "lightning-timesheet/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newRateLimitStore(t *testing.T) (*redisStore.RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisStore.NewRateLimitStore(client), mr
}

func setupRateLimitRouter(store *redisStore.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Group: "settle", Limit: 3, Window: time.Minute}
	r.Use(middleware.UserIdentity())
	r.POST("/api/v1/payments/settle", middleware.RateLimiter(store, rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func settleAs(router *gin.Engine, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/settle", nil)
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	store, _ := newRateLimitStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		w := settleAs(router, "alice")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	store, _ := newRateLimitStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, settleAs(router, "alice").Code)
	}

	w := settleAs(router, "alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_IndependentPerUser(t *testing.T) {
	store, _ := newRateLimitStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, settleAs(router, "alice").Code)
	}
	assert.Equal(t, http.StatusOK, settleAs(router, "bob").Code)
	assert.Equal(t, http.StatusOK, settleAs(router, "").Code)
}

func TestRateLimiter_DegradedWhenRedisDown(t *testing.T) {
	store, mr := newRateLimitStore(t)
	router := setupRateLimitRouter(store)
	mr.Close()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, settleAs(router, "alice").Code)
	}
}

func TestRateLimitRules(t *testing.T) {
	for _, tc := range []struct {
		rule  middleware.RateLimitRule
		group string
		limit int64
	}{
		{middleware.SessionRule, "session", 30},
		{middleware.SettleRule, "settle", 10},
		{middleware.ReadRule, "read", 120},
	} {
		assert.Equal(t, tc.group, tc.rule.Group)
		assert.Equal(t, tc.limit, tc.rule.Limit, tc.group)
		assert.Equal(t, time.Minute, tc.rule.Window, tc.group)
	}
}
