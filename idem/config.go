package idem

import (
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// DriverType 幂等记录后端
type DriverType string

const (
	// DriverMemory 进程内存，仅单实例部署
	DriverMemory DriverType = "memory"
	// DriverRedis 多实例共享
	DriverRedis DriverType = "redis"
)

// Config 幂等组件配置
//
//	idem:
//	  enabled: true
//	  driver: redis
//	  prefix: "orch:idem:"
//	  ttl: 24h
//	  lock_ttl: 30s
type Config struct {
	// Enabled 为 false 时管理写接口不识别幂等键
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Driver 后端类型: "memory" | "redis" (默认 "memory")
	Driver DriverType `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Prefix 记录 Key 前缀 (默认 "orch:idem:")
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// TTL 成功响应的保留时间 (默认 24h)
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// LockTTL 处理中标记的超时，进程崩溃后锁最多保留这么久 (默认 30s)
	LockTTL time.Duration `json:"lock_ttl" yaml:"lock_ttl" mapstructure:"lock_ttl"`

	// HeaderKey 携带幂等键的请求头 (默认 "Idempotency-Key")
	HeaderKey string `json:"header_key" yaml:"header_key" mapstructure:"header_key"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = "orch:idem:"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.HeaderKey == "" {
		c.HeaderKey = "Idempotency-Key"
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverMemory, DriverRedis:
		return nil
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported driver %q", c.Driver)
	}
}
