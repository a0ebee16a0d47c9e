package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ceyewan/orchestrator/cache"
	"github.com/ceyewan/orchestrator/db"
	"github.com/ceyewan/orchestrator/idem"
	"github.com/ceyewan/orchestrator/orchestrator"
	"github.com/ceyewan/orchestrator/ratelimit"
	"github.com/ceyewan/orchestrator/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
app:
  name: orchestrator
  env: test
database:
  driver: sqlite
  auto_migrate: true
  sqlite:
    path: "file::memory:?cache=shared"
orchestrator:
  store_policy: instead
  gsd_timeout: 2s
  cloud:
    operator: aitia
    name: testcloud
  peers:
    - operator: aitia
      name: peer-a
      address: 10.0.0.2
      port: 8441
collaborators:
  service_registry:
    base_url: http://127.0.0.1:8443
server:
  addr: ":9441"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	loader, err := New(
		WithConfigName("orchestrator"),
		WithConfigPaths(dir),
		WithEnvPrefix("ORCHAPPTEST"),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	cfg, err := Load(context.Background(), loader)
	require.NoError(t, err)

	assert.Equal(t, "orchestrator", cfg.App.Name)
	assert.Equal(t, db.DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Database.SQLite.Path)
	assert.Equal(t, orchestrator.StorePolicyInstead, cfg.Orchestrator.StorePolicy)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.GSDTimeout)
	assert.Equal(t, "testcloud", cfg.Orchestrator.Cloud.Name)
	require.Len(t, cfg.Orchestrator.Peers, 1)
	assert.Equal(t, "peer-a", cfg.Orchestrator.Peers[0].Name)
	assert.Equal(t, 8441, cfg.Orchestrator.Peers[0].Port)
	assert.Equal(t, "http://127.0.0.1:8443", cfg.Collaborators.ServiceRegistry.BaseURL)
	assert.Equal(t, ":9441", cfg.Server.Addr)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	t.Setenv("ORCHENVTEST_SERVER_ADDR", ":7000")

	loader, err := New(
		WithConfigName("orchestrator"),
		WithConfigPaths(dir),
		WithEnvPrefix("ORCHENVTEST"),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	cfg, err := Load(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadCanceled(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	loader, err := New(WithConfigName("orchestrator"), WithConfigPaths(dir), WithEnvPrefix("ORCHCANCELTEST"))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Load(ctx, loader)
	assert.ErrorIs(t, err, context.Canceled)
}

func validConfig() *AppConfig {
	cfg := &AppConfig{}
	cfg.Database.Driver = db.DriverSQLite
	cfg.Database.SQLite.Path = "orchestrator.db"
	cfg.Orchestrator.Cloud.Name = "testcloud"
	return cfg
}

func TestAppConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{name: "empty driver defaults to sqlite", mutate: func(c *AppConfig) { c.Database.Driver = "" }},
		{name: "sqlite without path", mutate: func(c *AppConfig) { c.Database.SQLite.Path = "" }, wantErr: true},
		{name: "mysql without dsn or host", mutate: func(c *AppConfig) { c.Database.Driver = db.DriverMySQL }, wantErr: true},
		{name: "mysql with host", mutate: func(c *AppConfig) {
			c.Database.Driver = db.DriverMySQL
			c.Database.MySQL.Host = "127.0.0.1"
		}},
		{name: "unknown driver", mutate: func(c *AppConfig) { c.Database.Driver = "postgres" }, wantErr: true},
		{name: "distributed cache without redis", mutate: func(c *AppConfig) {
			c.Cache.Enabled = true
			c.Cache.Mode = cache.ModeDistributed
		}, wantErr: true},
		{name: "distributed cache with redis", mutate: func(c *AppConfig) {
			c.Cache.Enabled = true
			c.Cache.Mode = cache.ModeDistributed
			c.Redis.Addr = "127.0.0.1:6379"
		}},
		{name: "disabled distributed ratelimit needs no redis", mutate: func(c *AppConfig) {
			c.RateLimit.Mode = ratelimit.ModeDistributed
		}},
		{name: "redis idempotency without redis", mutate: func(c *AppConfig) {
			c.Idempotency.Enabled = true
			c.Idempotency.Driver = idem.DriverRedis
		}, wantErr: true},
		{name: "registry without etcd", mutate: func(c *AppConfig) { c.Registry.Enabled = true }, wantErr: true},
		{name: "registry with etcd", mutate: func(c *AppConfig) {
			c.Registry.Enabled = true
			c.Etcd.Endpoints = []string{"127.0.0.1:2379"}
		}},
		{name: "registry without own cloud", mutate: func(c *AppConfig) {
			c.Registry.Enabled = true
			c.Etcd.Endpoints = []string{"127.0.0.1:2379"}
			c.Orchestrator.Cloud.Name = ""
		}, wantErr: true},
		{name: "etcd peers without registry", mutate: func(c *AppConfig) {
			c.Orchestrator.PeerSource = orchestrator.PeerSourceEtcd
		}, wantErr: true},
		{name: "protected management without secret", mutate: func(c *AppConfig) {
			c.Auth.ProtectManagement = true
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, xerrors.Is(err, ErrValidationFailed))
		})
	}
}

func TestAppConfigValidateCollectsAll(t *testing.T) {
	cfg := validConfig()
	cfg.Database.SQLite.Path = ""
	cfg.Registry.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)

	var multi *xerrors.MultiError
	require.True(t, xerrors.As(err, &multi))
	assert.Len(t, multi.Errors, 2)
}

func TestLoaderWithoutFile(t *testing.T) {
	loader, err := New(
		WithConfigName("absent"),
		WithConfigPaths(t.TempDir()),
		WithEnvPrefix("ORCHEMPTYTEST"),
	)
	require.NoError(t, err)

	err = loader.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestLoaderEnvironmentOverlay(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	overlay := "server:\n  mode: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.dev.yaml"), []byte(overlay), 0o644))
	t.Setenv("ORCHOVERLAYTEST_ENV", "dev")

	loader, err := New(
		WithConfigName("orchestrator"),
		WithConfigPaths(dir),
		WithEnvPrefix("ORCHOVERLAYTEST"),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "debug", loader.Get("server.mode"))
	assert.Equal(t, ":9441", loader.Get("server.addr"))
}
