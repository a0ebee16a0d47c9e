package registry

import "time"

// Config Registry 组件配置
type Config struct {
	// Enabled 为 false 时使用静态对端列表
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Namespace Etcd Key 前缀，默认 "/orchestrator/clouds"
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`

	// DefaultTTL 默认注册租约时长，默认 30s
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// RetryInterval Watch 重连间隔，默认 1s
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval" mapstructure:"retry_interval"`
}

func (c *Config) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "/orchestrator/clouds"
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 30 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
}

func (c *Config) validate() error {
	if c.DefaultTTL < time.Second {
		return ErrInvalidTTL
	}
	if c.RetryInterval < 0 {
		return ErrInvalidConfig
	}
	return nil
}
