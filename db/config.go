package db

import (
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// Config DB 组件配置
type Config struct {
	// Driver 数据库驱动：sqlite | mysql (默认: sqlite)
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// EnableTracing 注册 otelgorm 插件，为每条 SQL 创建 Span
	EnableTracing bool `json:"enable_tracing" yaml:"enable_tracing" mapstructure:"enable_tracing"`

	// SlowThreshold 慢查询阈值，超过时以 Warn 记录 (默认: 200ms)
	SlowThreshold time.Duration `json:"slow_threshold" yaml:"slow_threshold" mapstructure:"slow_threshold"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if c.Driver != DriverMySQL && c.Driver != DriverSQLite {
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported driver: %s (must be 'mysql' or 'sqlite')", c.Driver)
	}
	return nil
}

// 支持的驱动
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)
