package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: orchestrator
//	  version: v1.0.0
//	  runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 作为 Resource 的 service.name
	ServiceName string `mapstructure:"service_name"`

	// Version 作为 Resource 的 service.version
	Version string `mapstructure:"version"`

	// Runtime 是否采集 Go 运行时指标（GC、goroutine、内存）
	Runtime bool `mapstructure:"runtime"`
}

// NewDevDefaultConfig 测试与本地开发使用的配置
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{Enabled: true, ServiceName: serviceName, Version: "dev"}
}
