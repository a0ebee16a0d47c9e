package auth

import (
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// Config 令牌配置
//
// SecretKey 为空时编排服务不签发令牌，表单中的 authorizationTokens 留空。
type Config struct {
	// SecretKey HS256 签名密钥，至少 32 字符
	SecretKey string `json:"secret_key" yaml:"secret_key" mapstructure:"secret_key"`

	// Issuer 签发者，通常为本云名称
	Issuer string `json:"issuer" yaml:"issuer" mapstructure:"issuer"`

	// TokenTTL 令牌有效期（默认：1 小时）
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl" mapstructure:"token_ttl"`

	// TokenHeadName Authorization 头前缀（默认：Bearer）
	TokenHeadName string `json:"token_head_name" yaml:"token_head_name" mapstructure:"token_head_name"`

	// ProtectManagement 为 true 时存储管理接口要求 aud 为 ManagementAudience 的令牌
	ProtectManagement bool `json:"protect_management" yaml:"protect_management" mapstructure:"protect_management"`
}

// ManagementAudience 管理接口令牌的 aud
const ManagementAudience = "orchestrator-management"

// Enabled 是否配置了签名密钥
func (c *Config) Enabled() bool {
	return c != nil && c.SecretKey != ""
}

func (c *Config) setDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.TokenHeadName == "" {
		c.TokenHeadName = "Bearer"
	}
}

func (c *Config) validate() error {
	if c.SecretKey == "" {
		return ErrInvalidConfig
	}
	if len(c.SecretKey) < 32 {
		return xerrors.Wrapf(ErrInvalidConfig, "secret_key must be at least 32 characters")
	}
	return nil
}
