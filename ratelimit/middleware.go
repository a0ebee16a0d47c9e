package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// KeyFunc 从请求中提取限流键
type KeyFunc func(*gin.Context) string

// LimitFunc 返回请求适用的规则，无效规则表示不限流
type LimitFunc func(*gin.Context) Limit

// RejectFunc 请求被限流时写响应，须调用 Abort 系列方法
type RejectFunc func(*gin.Context)

// MiddlewareOption 中间件选项
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	onReject RejectFunc
	failOpen bool
}

// WithRejectHandler 自定义限流响应，默认返回 429 与 {"error": "rate limit exceeded"}
func WithRejectHandler(fn RejectFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.onReject = fn
		}
	}
}

// WithFailClosed 限流器出错时拒绝请求，默认放行
func WithFailClosed() MiddlewareOption {
	return func(o *middlewareOptions) {
		o.failOpen = false
	}
}

// ClientIPKey 以客户端 IP 作为限流键
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// RouteKey 以客户端 IP 加路由模板作为限流键，不同接口独立计数
func RouteKey(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.ClientIP() + ":" + route
}

// GinMiddleware 创建 Gin 限流中间件
//
//	r.Use(ratelimit.GinMiddleware(limiter, ratelimit.RouteKey, func(*gin.Context) ratelimit.Limit {
//		return ratelimit.Limit{Rate: 10, Burst: 20}
//	}))
func GinMiddleware(limiter Limiter, keyFunc KeyFunc, limitFunc LimitFunc, opts ...MiddlewareOption) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = ClientIPKey
	}
	o := &middlewareOptions{onReject: defaultReject, failOpen: true}
	for _, opt := range opts {
		opt(o)
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		limit := limitFunc(c)
		if key == "" || !limit.Valid() {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", formatLimit(limit))

		allowed, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil && o.failOpen {
			c.Next()
			return
		}
		if err != nil || !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			o.onReject(c)
			return
		}
		c.Next()
	}
}

func defaultReject(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
}

func formatLimit(limit Limit) string {
	return fmt.Sprintf("rate=%.2f, burst=%d", limit.Rate, limit.Burst)
}
