package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey Gin Context 中保存 Claims 的键
const ClaimsKey = "auth:claims"

// GinMiddleware 校验 Authorization 头中的令牌，要求 aud 等于 audience
func GinMiddleware(a Authenticator, headName, audience string) gin.HandlerFunc {
	if headName == "" {
		headName = "Bearer"
	}
	return func(c *gin.Context) {
		token, err := extractToken(c.Request, headName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := a.Verify(c.Request.Context(), token, audience)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims 从 Gin Context 获取 Claims
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func extractToken(r *http.Request, headName string) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != headName || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
