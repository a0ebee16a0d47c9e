package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims 授权令牌载荷
//
// 标准声明中 Subject 为消费者键，Audience 为提供者键。
type Claims struct {
	jwt.RegisteredClaims

	Service   string `json:"service"`
	Interface string `json:"interface,omitempty"`
}

// Consumer 令牌持有者
func (c *Claims) Consumer() string {
	return c.Subject
}

// Provider 令牌授权访问的提供者
func (c *Claims) Provider() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}
