// Package api 提供编排服务的 gin HTTP 接口。
//
// 路由：
//
//	POST   /orchestrator/orchestration      编排请求
//	GET    /orchestrator/store/all          全部存储条目
//	POST   /orchestrator/store/default      消费者的默认条目
//	POST   /orchestrator/store/query        按消费者与服务查询条目
//	POST   /orchestrator/mgmt/store         写入条目（可要求管理令牌，识别 Idempotency-Key）
//	DELETE /orchestrator/mgmt/store/:id     删除条目（可要求管理令牌）
//	POST   /gatekeeper/gsd                  对端云的全局服务发现
//	POST   /gatekeeper/icn                  对端云的跨云协商
//	GET    /healthz                         健康检查
//	GET    /metrics                         Prometheus 指标
//
// 错误统一渲染为 {errorMessage, errorCode, exceptionType}。
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/idem"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/ratelimit"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// Orchestrator 接口层依赖的编排能力
type Orchestrator interface {
	Orchestrate(ctx context.Context, form *model.ServiceRequestForm) (model.OrchestrationResponse, error)
	HandleGSD(ctx context.Context, req model.GSDRequest) (model.GSDResult, error)
	HandleICN(ctx context.Context, req model.ICNRequest) (model.ICNResult, error)
}

// Server HTTP 服务
type Server struct {
	cfg          Config
	orchestrator Orchestrator
	opts         *options
	logger       clog.Logger
	engine       *gin.Engine
	httpServer   *http.Server
}

// New 创建 HTTP 服务并注册路由
func New(cfg *Config, o Orchestrator, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "orchestrator is required")
	}

	op := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(op)
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(op.meter, c.ServiceName)
	if err != nil {
		return nil, xerrors.Wrap(err, "create http metrics")
	}

	gin.SetMode(c.Mode)
	s := &Server{
		cfg:          c,
		orchestrator: o,
		opts:         op,
		logger:       op.logger,
		engine:       gin.New(),
	}

	s.engine.Use(
		gin.Recovery(),
		trace.GinMiddleware(c.ServiceName),
		requestID(),
		metrics.GinHTTPMiddleware(httpMetrics),
		s.accessLog(),
	)
	if op.limiter != nil {
		limit := op.limit
		s.engine.Use(ratelimit.GinMiddleware(op.limiter, ratelimit.RouteKey,
			func(*gin.Context) ratelimit.Limit { return limit }))
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         c.Addr,
		Handler:      s.engine,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(s.opts.meter.Handler()))

	orch := s.engine.Group("/orchestrator")
	orch.POST("/orchestration", s.orchestrate)

	st := orch.Group("/store")
	st.GET("/all", s.allEntries)
	st.POST("/default", s.defaultEntries)
	st.POST("/query", s.queryEntries)

	mgmt := orch.Group("/mgmt")
	if s.opts.authenticator != nil {
		mgmt.Use(auth.GinMiddleware(s.opts.authenticator, s.opts.tokenHead, auth.ManagementAudience))
	}
	save := []gin.HandlerFunc{s.saveEntries}
	if s.opts.idempotency != nil {
		save = append([]gin.HandlerFunc{s.opts.idempotency.GinMiddleware(idem.WithRejectHandler(s.fail))}, save...)
	}
	mgmt.POST("/store", save...)
	mgmt.DELETE("/store/:id", s.deleteEntry)

	gk := s.engine.Group("/gatekeeper")
	gk.POST("/gsd", s.gsd)
	gk.POST("/icn", s.icn)
}

// Handler 返回路由，便于测试与嵌入
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 启动监听，ctx 取消后在 ShutdownTimeout 内优雅关闭
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", clog.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return xerrors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return xerrors.Wrap(err, "http server shutdown")
	}
	return nil
}

// requestID 透传或生成请求 ID，并写入日志上下文
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(clog.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugContext(c.Request.Context(), "http request",
			clog.String("method", c.Request.Method),
			clog.String("route", c.FullPath()),
			clog.Int("status", c.Writer.Status()),
			clog.Duration("elapsed", time.Since(start)))
	}
}
