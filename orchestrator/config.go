package orchestrator

import (
	"time"

	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

// StorePolicy 编排存储在本地流水线中的位置
type StorePolicy string

const (
	// StorePolicyDisabled 不查询编排存储
	StorePolicyDisabled StorePolicy = "disabled"
	// StorePolicyBefore 先查存储，命中则直接返回，否则走动态发现
	StorePolicyBefore StorePolicy = "before"
	// StorePolicyInstead 只查存储，不走动态发现
	StorePolicyInstead StorePolicy = "instead"
)

// PeerSource 对端云列表来源
type PeerSource string

const (
	PeerSourceStatic PeerSource = "static"
	PeerSourceEtcd   PeerSource = "etcd"
)

// CloudConfig 云身份配置
type CloudConfig struct {
	Operator             string `json:"operator" yaml:"operator" mapstructure:"operator"`
	Name                 string `json:"name" yaml:"name" mapstructure:"name"`
	Address              string `json:"address" yaml:"address" mapstructure:"address"`
	Port                 int    `json:"port" yaml:"port" mapstructure:"port"`
	GatekeeperServiceURI string `json:"gatekeeper_uri" yaml:"gatekeeper_uri" mapstructure:"gatekeeper_uri"`
	AuthenticationInfo   string `json:"authentication_info" yaml:"authentication_info" mapstructure:"authentication_info"`
}

// Cloud 转换为数据模型
func (c CloudConfig) Cloud() model.Cloud {
	return model.Cloud{
		Operator:             c.Operator,
		CloudName:            c.Name,
		Address:              c.Address,
		Port:                 c.Port,
		GatekeeperServiceURI: c.GatekeeperServiceURI,
		AuthenticationInfo:   c.AuthenticationInfo,
	}
}

// Config 编排器配置
//
//	orchestrator:
//	  store_policy: before
//	  cloud: {operator: aitia, name: testcloud1, address: 127.0.0.1, port: 8449}
//	  peer_source: static
//	  peers:
//	    - {operator: aitia, name: testcloud2, address: 10.0.0.2, port: 8449}
//	  max_concurrent_peers: 8
//	  gsd_timeout: 5s
//	  icn_timeout: 10s
//	  enable_inter_cloud_fallback: false
type Config struct {
	// StorePolicy disabled | before | instead（默认：before）
	StorePolicy StorePolicy `json:"store_policy" yaml:"store_policy" mapstructure:"store_policy"`

	// Cloud 本云身份，跨云编排与网关处理需要
	Cloud CloudConfig `json:"cloud" yaml:"cloud" mapstructure:"cloud"`

	// PeerSource static | etcd（默认：static）
	PeerSource PeerSource `json:"peer_source" yaml:"peer_source" mapstructure:"peer_source"`

	// Peers 静态对端列表，PeerSource 为 static 时使用
	Peers []CloudConfig `json:"peers" yaml:"peers" mapstructure:"peers"`

	// MaxConcurrentPeers GSD/ICN 同时在途的对端调用上限（默认：8）
	MaxConcurrentPeers int `json:"max_concurrent_peers" yaml:"max_concurrent_peers" mapstructure:"max_concurrent_peers"`

	// GSDTimeout 单个对端 GSD 调用超时（默认：5s）
	GSDTimeout time.Duration `json:"gsd_timeout" yaml:"gsd_timeout" mapstructure:"gsd_timeout"`

	// ICNTimeout 单个对端 ICN 调用超时（默认：10s）
	ICNTimeout time.Duration `json:"icn_timeout" yaml:"icn_timeout" mapstructure:"icn_timeout"`

	// EnableInterCloudFallback 本地结果为空时自动尝试跨云编排
	EnableInterCloudFallback bool `json:"enable_inter_cloud_fallback" yaml:"enable_inter_cloud_fallback" mapstructure:"enable_inter_cloud_fallback"`
}

// PeerClouds 静态对端列表
func (c *Config) PeerClouds() []model.Cloud {
	out := make([]model.Cloud, 0, len(c.Peers))
	for _, p := range c.Peers {
		out = append(out, p.Cloud())
	}
	return out
}

func (c *Config) setDefaults() {
	if c.StorePolicy == "" {
		c.StorePolicy = StorePolicyBefore
	}
	if c.PeerSource == "" {
		c.PeerSource = PeerSourceStatic
	}
	if c.MaxConcurrentPeers <= 0 {
		c.MaxConcurrentPeers = 8
	}
	if c.GSDTimeout <= 0 {
		c.GSDTimeout = 5 * time.Second
	}
	if c.ICNTimeout <= 0 {
		c.ICNTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.StorePolicy {
	case StorePolicyDisabled, StorePolicyBefore, StorePolicyInstead:
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unknown store_policy %q", c.StorePolicy)
	}
	switch c.PeerSource {
	case PeerSourceStatic, PeerSourceEtcd:
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unknown peer_source %q", c.PeerSource)
	}
	if c.Cloud != (CloudConfig{}) {
		if err := c.Cloud.Cloud().Validate(); err != nil {
			return xerrors.Wrap(xerrors.Join(ErrInvalidConfig, err), "cloud")
		}
	}
	for i, p := range c.Peers {
		if err := p.Cloud().Validate(); err != nil {
			return xerrors.Wrapf(xerrors.Join(ErrInvalidConfig, err), "peers[%d]", i)
		}
	}
	return nil
}
