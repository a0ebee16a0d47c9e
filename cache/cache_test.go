package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/testkit"
	"github.com/ceyewan/orchestrator/xerrors"
)

type decision struct {
	Allowed bool   `json:"allowed" msgpack:"allowed"`
	Reason  string `json:"reason" msgpack:"reason"`
}

func newStandaloneCache(t *testing.T, ttl time.Duration) Cache {
	t.Helper()

	c, err := New(&Config{Mode: ModeStandalone, DefaultTTL: ttl},
		WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = New(&Config{Mode: ModeDistributed})
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = New(&Config{Mode: "memcached"})
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestStandaloneSetGet(t *testing.T) {
	c := newStandaloneCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "c|p|s", true, 0))
	var allowed bool
	require.NoError(t, c.Get(ctx, "c|p|s", &allowed))
	assert.True(t, allowed)

	require.NoError(t, c.Set(ctx, "struct", decision{Allowed: true, Reason: "rule"}, 0))
	var d decision
	require.NoError(t, c.Get(ctx, "struct", &d))
	assert.Equal(t, "rule", d.Reason)

	var s string
	err := c.Get(ctx, "struct", &s)
	assert.ErrorIs(t, err, ErrInvalidDest)

	err = c.Get(ctx, "struct", d)
	assert.ErrorIs(t, err, ErrInvalidDest)
}

func TestStandaloneNumericConversion(t *testing.T) {
	c := newStandaloneCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "n", 7, 0))
	var n64 int64
	require.NoError(t, c.Get(ctx, "n", &n64))
	assert.EqualValues(t, 7, n64)

	var str string
	assert.ErrorIs(t, c.Get(ctx, "n", &str), ErrInvalidDest)
}

func TestStandaloneMissDeleteHas(t *testing.T) {
	c := newStandaloneCache(t, 0)
	ctx := context.Background()

	var v bool
	err := c.Get(ctx, "absent", &v)
	assert.ErrorIs(t, err, ErrMiss)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))

	require.NoError(t, c.Set(ctx, "k", false, 0))
	ok, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, c.Expire(ctx, "k", time.Second), ErrMiss)
}

func TestStandaloneExpiry(t *testing.T) {
	c := newStandaloneCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", true, 50*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", true, 0))

	assert.Eventually(t, func() bool {
		ok, _ := c.Has(ctx, "short")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)

	ok, err := c.Has(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedRoundTrip(t *testing.T) {
	conn := testkit.GetRedisConnector(t)
	ctx := context.Background()

	for _, ser := range []string{"json", "msgpack"} {
		t.Run(ser, func(t *testing.T) {
			c, err := New(&Config{
				Mode:       ModeDistributed,
				Prefix:     "orch:test:" + testkit.NewID() + ":",
				Serializer: ser,
				DefaultTTL: time.Minute,
			}, WithRedisConnector(conn), WithLogger(testkit.NewLogger()))
			require.NoError(t, err)

			require.NoError(t, c.Set(ctx, "d", decision{Allowed: true, Reason: "rule"}, 0))
			var got decision
			require.NoError(t, c.Get(ctx, "d", &got))
			assert.Equal(t, decision{Allowed: true, Reason: "rule"}, got)

			require.NoError(t, c.Delete(ctx, "d"))
			assert.ErrorIs(t, c.Get(ctx, "d", &got), ErrMiss)
			assert.ErrorIs(t, c.Expire(ctx, "d", time.Second), ErrMiss)
		})
	}
}
