package api

import (
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// ErrInvalidConfig 服务配置非法
var ErrInvalidConfig = xerrors.Mark(xerrors.New("api: invalid config"), xerrors.ErrInvalidInput)

// Config HTTP 服务配置
//
//	server:
//	  addr: ":8441"
//	  mode: release
//	  read_timeout: 10s
//	  write_timeout: 30s
//	  shutdown_timeout: 10s
type Config struct {
	// Addr 监听地址（默认：:8441）
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// Mode gin 运行模式 debug | release | test（默认：release）
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// ReadTimeout 读取请求超时（默认：10s）
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout 写响应超时，须覆盖跨云编排耗时（默认：30s）
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	// ShutdownTimeout 优雅关闭等待时间（默认：10s）
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// ServiceName 追踪与指标中的服务名（默认：orchestrator）
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8441"
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.ServiceName == "" {
		c.ServiceName = "orchestrator"
	}
}

func (c *Config) validate() error {
	switch c.Mode {
	case "debug", "release", "test":
		return nil
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unknown mode %q", c.Mode)
	}
}
