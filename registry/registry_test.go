package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/testkit"
)

func TestStaticKeepsDeclaredOrder(t *testing.T) {
	clouds := []model.Cloud{
		{Operator: "b", CloudName: "two"},
		{Operator: "a", CloudName: "one"},
	}
	s := NewStatic(clouds)
	clouds[0].CloudName = "mutated"

	got, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].CloudName)
	assert.Equal(t, "one", got[1].CloudName)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "/orchestrator/clouds", cfg.Namespace)
	assert.Equal(t, 30*time.Second, cfg.DefaultTTL)

	bad := &Config{DefaultTTL: 100 * time.Millisecond}
	bad.setDefaults()
	assert.ErrorIs(t, bad.validate(), ErrInvalidTTL)
}

func TestNewRequiresConnector(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func newEtcdRegistry(t *testing.T) Registry {
	t.Helper()

	conn := testkit.GetEtcdConnector(t)
	reg, err := New(conn, &Config{
		Namespace:     "/orchestrator-test/" + testkit.NewID(),
		DefaultTTL:    5 * time.Second,
		RetryInterval: 100 * time.Millisecond,
	}, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestEtcdRegisterListDeregister(t *testing.T) {
	reg := newEtcdRegistry(t)
	ctx := testkit.NewContext(t, 10*time.Second)

	c2 := model.Cloud{Operator: "aitia", CloudName: "cloud-2", Address: "10.0.0.2", Port: 8446}
	c1 := model.Cloud{Operator: "aitia", CloudName: "cloud-1", Address: "10.0.0.1", Port: 8446}
	require.NoError(t, reg.Register(ctx, c2, 0))
	require.NoError(t, reg.Register(ctx, c1, 0))
	assert.ErrorIs(t, reg.Register(ctx, c1, 0), ErrCloudAlreadyRegistered)

	clouds, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, clouds, 2)
	assert.Equal(t, c1, clouds[0])
	assert.Equal(t, c2, clouds[1])

	require.NoError(t, reg.Deregister(ctx, c1))
	assert.ErrorIs(t, reg.Deregister(ctx, c1), ErrCloudNotFound)

	clouds, err = reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Cloud{c2}, clouds)
}

func TestEtcdWatch(t *testing.T) {
	reg := newEtcdRegistry(t)
	ctx := testkit.NewContext(t, 10*time.Second)

	events, err := reg.Watch(ctx)
	require.NoError(t, err)

	cloud := model.Cloud{Operator: "aitia", CloudName: "watched"}
	require.NoError(t, reg.Register(ctx, cloud, 0))

	select {
	case ev := <-events:
		assert.Equal(t, EventTypePut, ev.Type)
		assert.Equal(t, cloud, ev.Cloud)
	case <-ctx.Done():
		t.Fatal("timed out waiting for put event")
	}

	require.NoError(t, reg.Deregister(ctx, cloud))
	select {
	case ev := <-events:
		assert.Equal(t, EventTypeDelete, ev.Type)
		assert.Equal(t, cloud.Key(), ev.Cloud.Key())
	case <-ctx.Done():
		t.Fatal("timed out waiting for delete event")
	}
}

func TestEtcdClosedRegistry(t *testing.T) {
	reg := newEtcdRegistry(t)
	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())

	_, err := reg.List(context.Background())
	assert.ErrorIs(t, err, ErrRegistryClosed)
}
