package client

import (
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// Endpoint 单个协作方的地址与调用超时
type Endpoint struct {
	// BaseURL 例如 http://127.0.0.1:8442/serviceregistry
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Timeout 单次调用超时（默认：5s）
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Config 协作方配置
//
//	collaborators:
//	  service_registry: {base_url: "http://127.0.0.1:8442/serviceregistry", timeout: 5s}
//	  authorization:    {base_url: "http://127.0.0.1:8444/authorization", timeout: 5s}
//	  qos_manager:      {base_url: "http://127.0.0.1:8440/qosmanager", timeout: 5s}
//	  gatekeeper_path: /gatekeeper
type Config struct {
	ServiceRegistry Endpoint `json:"service_registry" yaml:"service_registry" mapstructure:"service_registry"`
	Authorization   Endpoint `json:"authorization" yaml:"authorization" mapstructure:"authorization"`
	QoSManager      Endpoint `json:"qos_manager" yaml:"qos_manager" mapstructure:"qos_manager"`

	// GatekeeperPath 对端未声明 GatekeeperServiceURI 时拼接在 http://address:port 之后（默认：/gatekeeper）
	GatekeeperPath string `json:"gatekeeper_path" yaml:"gatekeeper_path" mapstructure:"gatekeeper_path"`

	// PeerTimeout 对端调用的兜底超时，编排器通常以更短的 ctx 截止时间覆盖（默认：10s）
	PeerTimeout time.Duration `json:"peer_timeout" yaml:"peer_timeout" mapstructure:"peer_timeout"`
}

func (c *Config) setDefaults() {
	for _, ep := range []*Endpoint{&c.ServiceRegistry, &c.Authorization, &c.QoSManager} {
		if ep.Timeout <= 0 {
			ep.Timeout = 5 * time.Second
		}
	}
	if c.GatekeeperPath == "" {
		c.GatekeeperPath = "/gatekeeper"
	}
	if c.PeerTimeout <= 0 {
		c.PeerTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.ServiceRegistry.BaseURL == "" {
		return xerrors.Wrap(ErrInvalidConfig, "service_registry.base_url is required")
	}
	if c.Authorization.BaseURL == "" {
		return xerrors.Wrap(ErrInvalidConfig, "authorization.base_url is required")
	}
	if c.QoSManager.BaseURL == "" {
		return xerrors.Wrap(ErrInvalidConfig, "qos_manager.base_url is required")
	}
	return nil
}
