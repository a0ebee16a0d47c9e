package config

import (
	"context"
	"strings"

	"github.com/ceyewan/orchestrator/api"
	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/breaker"
	"github.com/ceyewan/orchestrator/cache"
	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/db"
	"github.com/ceyewan/orchestrator/idem"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/orchestrator"
	"github.com/ceyewan/orchestrator/ratelimit"
	"github.com/ceyewan/orchestrator/registry"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

// AppConfig 编排服务的完整配置，进程启动时构造一次后逐级传给各组件
type AppConfig struct {
	App           AppInfo               `mapstructure:"app"`
	Log           clog.Config           `mapstructure:"log"`
	Metrics       metrics.Config        `mapstructure:"metrics"`
	Trace         trace.Config          `mapstructure:"trace"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Redis         connector.RedisConfig `mapstructure:"redis"`
	Etcd          connector.EtcdConfig  `mapstructure:"etcd"`
	Cache         CacheConfig           `mapstructure:"cache"`
	Breaker       BreakerConfig         `mapstructure:"breaker"`
	RateLimit     ratelimit.Config      `mapstructure:"ratelimit"`
	Auth          auth.Config           `mapstructure:"auth"`
	Idempotency   idem.Config           `mapstructure:"idempotency"`
	Registry      registry.Config       `mapstructure:"registry"`
	Orchestrator  orchestrator.Config   `mapstructure:"orchestrator"`
	Collaborators client.Config         `mapstructure:"collaborators"`
	Server        api.Config            `mapstructure:"server"`
}

// AppInfo 进程信息
type AppInfo struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

// DatabaseConfig 编排存储的数据库
type DatabaseConfig struct {
	db.Config `mapstructure:",squash"`

	// AutoMigrate 启动时创建或补齐存储表
	AutoMigrate bool `mapstructure:"auto_migrate"`

	SQLite connector.SQLiteConfig `mapstructure:"sqlite"`
	MySQL  connector.MySQLConfig  `mapstructure:"mysql"`
}

// CacheConfig 授权判定缓存
type CacheConfig struct {
	// Enabled 为 false 时每次都询问授权协作方
	Enabled bool `mapstructure:"enabled"`

	cache.Config `mapstructure:",squash"`
}

// BreakerConfig 协作方与对端云熔断
type BreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	breaker.Config `mapstructure:",squash"`
}

// Load 从 loader 解析完整配置并做跨组件校验
func Load(ctx context.Context, loader Loader) (*AppConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cfg AppConfig
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "config: unmarshal"), ErrValidationFailed)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验各组件之间的依赖关系，单个组件的字段由组件自身在 New 时校验
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "", db.DriverSQLite:
		if c.Database.SQLite.Path == "" {
			errs = append(errs, xerrors.New("database.sqlite.path is required"))
		}
	case db.DriverMySQL:
		if c.Database.MySQL.DSN == "" && c.Database.MySQL.Host == "" {
			errs = append(errs, xerrors.New("database.mysql.dsn or database.mysql.host is required"))
		}
	default:
		errs = append(errs, xerrors.New("database.driver must be sqlite or mysql"))
	}

	if c.NeedsRedis() && c.Redis.Addr == "" {
		errs = append(errs, xerrors.New("redis.addr is required by distributed cache, rate limit or idempotency"))
	}
	if c.NeedsEtcd() && len(c.Etcd.Endpoints) == 0 {
		errs = append(errs, xerrors.New("etcd.endpoints is required by the peer-cloud registry"))
	}
	if c.Orchestrator.PeerSource == orchestrator.PeerSourceEtcd && !c.Registry.Enabled {
		errs = append(errs, xerrors.New("orchestrator.peer_source=etcd requires registry.enabled"))
	}
	if c.Registry.Enabled && strings.TrimSpace(c.Orchestrator.Cloud.Name) == "" {
		errs = append(errs, xerrors.New("orchestrator.cloud is required to register in the peer-cloud registry"))
	}
	if c.Auth.ProtectManagement && !c.Auth.Enabled() {
		errs = append(errs, xerrors.New("auth.protect_management requires auth.secret_key"))
	}

	if err := xerrors.Combine(errs...); err != nil {
		return xerrors.Mark(err, ErrValidationFailed)
	}
	return nil
}

// NeedsRedis 是否有组件运行在分布式模式
func (c *AppConfig) NeedsRedis() bool {
	return (c.Cache.Enabled && c.Cache.Mode == cache.ModeDistributed) ||
		(c.RateLimit.Enabled && c.RateLimit.Mode == ratelimit.ModeDistributed) ||
		(c.Idempotency.Enabled && c.Idempotency.Driver == idem.DriverRedis)
}

// NeedsEtcd 是否启用了 etcd 对端目录
func (c *AppConfig) NeedsEtcd() bool {
	return c.Registry.Enabled
}
