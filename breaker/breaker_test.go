package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/testkit"
	"github.com/ceyewan/orchestrator/xerrors"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T, opts ...Option) Breaker {
	t.Helper()

	cfg := &Config{
		MaxRequests:     1,
		Timeout:         100 * time.Millisecond,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	}
	opts = append([]Option{WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter(t))}, opts...)
	brk, err := New(cfg, opts...)
	require.NoError(t, err)
	return brk
}

func fail() (any, error) { return nil, errBoom }

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNil)

	_, err = New(&Config{FailureRatio: 1.5})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	brk, err := New(&Config{})
	require.NoError(t, err)
	assert.NotNil(t, brk)
}

func TestExecuteSuccess(t *testing.T) {
	brk := newTestBreaker(t)

	result, err := brk.Execute(context.Background(), "registry", func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	_, err = brk.Execute(context.Background(), "", fail)
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestTripsAndRecovers(t *testing.T) {
	brk := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := brk.Execute(ctx, "peer-a", fail)
		assert.ErrorIs(t, err, errBoom)
	}

	state, err := brk.State("peer-a")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)

	called := false
	_, err = brk.Execute(ctx, "peer-a", func() (any, error) {
		called = true
		return nil, nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrOpenState)
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))

	time.Sleep(150 * time.Millisecond)
	state, _ = brk.State("peer-a")
	assert.Equal(t, StateHalfOpen, state)

	_, err = brk.Execute(ctx, "peer-a", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	state, _ = brk.State("peer-a")
	assert.Equal(t, StateClosed, state)
}

func TestKeysAreIsolated(t *testing.T) {
	brk := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = brk.Execute(ctx, "peer-a", fail)
	}

	_, err := brk.Execute(ctx, "peer-b", func() (any, error) { return 1, nil })
	require.NoError(t, err)

	stateA, _ := brk.State("peer-a")
	stateB, _ := brk.State("peer-b")
	assert.Equal(t, StateOpen, stateA)
	assert.Equal(t, StateClosed, stateB)

	unknown, err := brk.State("never-used")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, unknown)
}

func TestFailureFuncIgnoresClientErrors(t *testing.T) {
	brk := newTestBreaker(t, WithFailureFunc(func(err error) bool {
		return xerrors.Is(err, xerrors.ErrUnavailable)
	}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := brk.Execute(ctx, "authorization", func() (any, error) {
			return nil, xerrors.ErrInvalidInput
		})
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	}
	state, _ := brk.State("authorization")
	assert.Equal(t, StateClosed, state)
}

func TestFallback(t *testing.T) {
	var fallbackKey string
	brk := newTestBreaker(t, WithFallback(func(ctx context.Context, key string, err error) error {
		fallbackKey = key
		assert.ErrorIs(t, err, ErrOpenState)
		return nil
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = brk.Execute(ctx, "qos", fail)
	}

	result, err := brk.Execute(ctx, "qos", fail)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "qos", fallbackKey)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
