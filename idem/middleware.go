package idem

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

// RejectFunc 处理无法继续的请求：键在处理中，或后端出错
type RejectFunc func(c *gin.Context, err error)

// MiddlewareOption 中间件选项
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	reject RejectFunc
}

// WithRejectHandler 自定义拒绝响应，默认 409/503 + {"error": msg}
func WithRejectHandler(fn RejectFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.reject = fn
		}
	}
}

func defaultReject(c *gin.Context, err error) {
	status := http.StatusServiceUnavailable
	if xerrors.Is(err, xerrors.ErrConflict) {
		status = http.StatusConflict
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

func (i *idem) GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	mo := middlewareOptions{reject: defaultReject}
	for _, o := range opts {
		o(&mo)
	}

	return func(c *gin.Context) {
		header := c.GetHeader(i.cfg.HeaderKey)
		if header == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := c.Request.Method + ":" + c.FullPath() + ":" + header

		if i.replay(c, key) {
			return
		}

		token, locked, err := i.store.Lock(ctx, key, i.cfg.LockTTL)
		if err != nil {
			i.outcome.Inc(ctx, metrics.L("outcome", "error"))
			i.logger.ErrorContext(ctx, "acquire idempotency lock failed", clog.String("key", key), clog.Error(err))
			mo.reject(c, err)
			return
		}
		if !locked {
			// 锁在检查结果和加锁之间可能刚好被释放并写入结果
			if i.replay(c, key) {
				return
			}
			i.outcome.Inc(ctx, metrics.L("outcome", "conflict"))
			mo.reject(c, ErrConcurrentRequest)
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			i.outcome.Inc(ctx, metrics.L("outcome", "failed"))
			if err := i.store.Unlock(ctx, key, token); err != nil {
				i.logger.WarnContext(ctx, "release idempotency lock failed", clog.String("key", key), clog.Error(err))
			}
			return
		}

		resp := cachedResponse{Status: status, Header: writer.Header().Clone(), Body: writer.body.Bytes()}
		resp.Header.Del("Content-Length")
		data, err := json.Marshal(resp)
		if err == nil {
			err = i.store.SetResult(ctx, key, data, i.cfg.TTL, token)
		}
		if err != nil {
			i.logger.WarnContext(ctx, "store idempotent response failed", clog.String("key", key), clog.Error(err))
			_ = i.store.Unlock(ctx, key, token)
			i.outcome.Inc(ctx, metrics.L("outcome", "error"))
			return
		}
		i.outcome.Inc(ctx, metrics.L("outcome", "stored"))
	}
}

// replay 命中已完成的记录时写回缓存的响应并中止后续处理
func (i *idem) replay(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	data, err := i.store.GetResult(ctx, key)
	if err != nil {
		if !xerrors.Is(err, ErrResultNotFound) {
			i.logger.WarnContext(ctx, "read idempotent response failed", clog.String("key", key), clog.Error(err))
		}
		return false
	}

	var resp cachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		i.logger.WarnContext(ctx, "decode idempotent response failed", clog.String("key", key), clog.Error(err))
		return false
	}
	for name, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Writer.Header().Set(ReplayedHeader, "true")
	c.Status(resp.Status)
	_, _ = c.Writer.Write(resp.Body)
	c.Abort()

	i.outcome.Inc(ctx, metrics.L("outcome", "replayed"))
	i.logger.DebugContext(ctx, "idempotent response replayed", clog.String("key", key))
	return true
}

// captureWriter 边写边记录响应体
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
