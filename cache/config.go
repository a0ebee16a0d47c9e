package cache

import "time"

// 缓存模式
const (
	ModeStandalone  = "standalone"
	ModeDistributed = "distributed"
)

// Config 缓存组件配置
//
//	cache:
//	  mode: standalone
//	  prefix: "orch:auth:"
//	  serializer: msgpack
//	  default_ttl: 30s
//	  standalone:
//	    capacity: 10000
type Config struct {
	// Mode 缓存模式: "standalone" | "distributed" (默认 "standalone")
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// Prefix 全局 Key 前缀，仅分布式模式使用
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// Serializer 分布式模式的编码: "json" | "msgpack"
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`

	// DefaultTTL Set 传入 ttl <= 0 时使用；为 0 表示永不过期
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// Standalone 单机缓存配置
	Standalone StandaloneConfig `json:"standalone" yaml:"standalone" mapstructure:"standalone"`
}

// StandaloneConfig 单机缓存配置
type StandaloneConfig struct {
	// Capacity 缓存最大容量（条目数，默认：10000）
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.Serializer == "" {
		c.Serializer = "json"
	}
	if c.Standalone.Capacity <= 0 {
		c.Standalone.Capacity = 10000
	}
}
