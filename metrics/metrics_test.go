package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m Meter) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func newTestMeter(t *testing.T) Meter {
	t.Helper()

	m, err := New(NewDevDefaultConfig("orchestrator-test"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("disabled returns discard", func(t *testing.T) {
		m, err := New(&Config{Enabled: false})
		require.NoError(t, err)
		assert.IsType(t, noopMeter{}, m)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("two meters do not collide", func(t *testing.T) {
		a := newTestMeter(t)
		b := newTestMeter(t)

		ca, err := a.Counter("dup_total", "dup")
		require.NoError(t, err)
		cb, err := b.Counter("dup_total", "dup")
		require.NoError(t, err)

		ca.Inc(context.Background())
		cb.Add(context.Background(), 3)

		assert.Contains(t, scrape(t, a), "dup_total")
		assert.Contains(t, scrape(t, b), "dup_total")
	})
}

func TestCounterExported(t *testing.T) {
	m := newTestMeter(t)
	ctx := context.Background()

	c, err := m.Counter("orchestrations_total", "orchestrations")
	require.NoError(t, err)
	c.Inc(ctx, L("mode", "local"), L(LabelOutcome, OutcomeSuccess))
	c.Inc(ctx, L("mode", "local"), L(LabelOutcome, OutcomeSuccess))

	body := scrape(t, m)
	assert.Contains(t, body, `orchestrations_total{`)
	assert.Contains(t, body, `mode="local"`)
	assert.Contains(t, body, `outcome="success"`)
}

func TestGaugeIncDec(t *testing.T) {
	m := newTestMeter(t)
	ctx := context.Background()

	g, err := m.Gauge("breaker_state", "breaker state")
	require.NoError(t, err)
	g.Inc(ctx, L("name", "peer"))
	g.Inc(ctx, L("name", "peer"))
	g.Dec(ctx, L("name", "peer"))

	impl := g.(*gaugeImpl)
	assert.Equal(t, 1.0, impl.values[labelKey([]Label{L("name", "peer")})])

	g.Set(ctx, 5, L("name", "peer"))
	assert.Equal(t, 5.0, impl.values[labelKey([]Label{L("name", "peer")})])
}

func TestHistogramBuckets(t *testing.T) {
	m := newTestMeter(t)

	h, err := m.Histogram("orchestration_duration_seconds", "duration",
		WithUnit("s"), WithBuckets([]float64{0.1, 1}))
	require.NoError(t, err)
	h.Record(context.Background(), 0.05, L("mode", "local"))

	body := scrape(t, m)
	assert.Contains(t, body, `le="0.1"`)
	assert.Contains(t, body, `le="1"`)
}

func TestHTTPStatusHelpers(t *testing.T) {
	assert.Equal(t, "2xx", HTTPStatusClass(200))
	assert.Equal(t, "5xx", HTTPStatusClass(503))
	assert.Equal(t, "unknown", HTTPStatusClass(42))
	assert.Equal(t, OutcomeSuccess, HTTPOutcome(302))
	assert.Equal(t, OutcomeError, HTTPOutcome(404))
}

func TestGinHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMeter(t)

	hm, err := NewHTTPServerMetrics(m, "orchestrator")
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinHTTPMiddleware(hm))
	r.GET("/providers/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/7", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	body := scrape(t, m)
	assert.Contains(t, body, MetricHTTPServerRequestTotal)
	assert.Contains(t, body, `route="/providers/:id"`)
	assert.Contains(t, body, `status_class="2xx"`)
}

func TestHTTPServerMetricsNilSafe(t *testing.T) {
	var hm *HTTPServerMetrics
	assert.NotPanics(t, func() {
		hm.Observe(context.Background(), "GET", "/", 200, time.Millisecond)
	})

	_, err := NewHTTPServerMetrics(nil, "x")
	assert.Error(t, err)
}
