package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/testkit"
	"github.com/ceyewan/orchestrator/xerrors"
)

func newStandaloneLimiter(t *testing.T) Limiter {
	t.Helper()

	l, err := New(&Config{Mode: ModeStandalone}, WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNil)

	_, err = New(&Config{Mode: ModeDistributed})
	assert.ErrorIs(t, err, ErrConnectorNil)

	_, err = New(&Config{Mode: "token-server"})
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestStandaloneBurstThenDeny(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 1, Burst: 3}

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "consumer-a", limit)
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, err := l.Allow(ctx, "consumer-a", limit)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "consumer-b", limit)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestStandaloneRefill(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()
	limit := Limit{Rate: 20, Burst: 1}

	ok, _ := l.Allow(ctx, "k", limit)
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "k", limit)
	require.False(t, ok)

	assert.Eventually(t, func() bool {
		ok, _ := l.Allow(ctx, "k", limit)
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestInvalidRequests(t *testing.T) {
	l := newStandaloneLimiter(t)
	ctx := context.Background()

	_, err := l.Allow(ctx, "", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = l.Allow(ctx, "k", Limit{})
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = l.AllowN(ctx, "k", Limit{Rate: 1, Burst: 1}, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := newStandaloneLimiter(t)

	r := gin.New()
	r.Use(GinMiddleware(l, RouteKey, func(*gin.Context) Limit { return Limit{Rate: 0.001, Burst: 1} },
		WithRejectHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"errorCode": 429})
		})))
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))
		return rec
	}

	first := serve()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Limit"))

	second := serve()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"errorCode":429}`, second.Body.String())
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
}

func TestGinMiddlewareSkipsInvalidLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := newStandaloneLimiter(t)

	r := gin.New()
	r.Use(GinMiddleware(l, nil, func(*gin.Context) Limit { return Limit{} }))
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestDistributedLimiter(t *testing.T) {
	conn := testkit.GetRedisConnector(t)

	l, err := New(&Config{Mode: ModeDistributed, Prefix: "orch:test:rl:" + testkit.NewID() + ":"},
		WithRedisConnector(conn), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	limit := Limit{Rate: 1, Burst: 2}
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "consumer", limit)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "consumer", limit)
	require.NoError(t, err)
	assert.False(t, ok)
}
