package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

type sqliteConnector struct {
	cfg     *SQLiteConfig
	db      *gorm.DB
	logger  clog.Logger
	metrics connectionMetrics
	healthy atomic.Bool
	mu      sync.RWMutex
}

// NewSQLite 创建 SQLite 连接器，实际连接在 Connect 时建立
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (SQLiteConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid sqlite config")
	}

	opt := applyOptions(opts)
	return &sqliteConnector{
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("connector", "sqlite"), clog.String("name", cfg.Name)),
		metrics: newConnectionMetrics(opt.meter),
	}, nil
}

// Connect 建立连接，已连接时直接返回
func (c *sqliteConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	c.logger.Info("attempting to connect to sqlite", clog.String("path", c.cfg.Path))

	db, err := gorm.Open(sqlite.Open(c.cfg.Path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		c.connectFailed(ctx, "failed to open sqlite", err)
		return xerrors.Wrapf(ErrConnection, "sqlite connector[%s]: %v", c.cfg.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.connectFailed(ctx, "failed to get sqlite db instance", err)
		return xerrors.Wrapf(ErrConnection, "sqlite connector[%s]: failed to get db instance: %v", c.cfg.Name, err)
	}
	sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConns)

	if err := sqlDB.PingContext(ctx); err != nil {
		c.connectFailed(ctx, "failed to ping sqlite", err)
		return xerrors.Wrapf(ErrConnection, "sqlite connector[%s]: ping failed: %v", c.cfg.Name, err)
	}

	c.db = db
	c.healthy.Store(true)
	c.metrics.attempts.Inc(ctx, metrics.L("connector", "sqlite"), metrics.L(metrics.LabelOutcome, metrics.OutcomeSuccess))
	c.metrics.active.Set(ctx, 1, metrics.L("connector", "sqlite"), metrics.L("name", c.cfg.Name))
	c.logger.Info("successfully connected to sqlite", clog.String("path", c.cfg.Path))
	return nil
}

func (c *sqliteConnector) connectFailed(ctx context.Context, msg string, err error) {
	c.logger.Error(msg, clog.Error(err))
	c.metrics.attempts.Inc(ctx, metrics.L("connector", "sqlite"), metrics.L(metrics.LabelOutcome, metrics.OutcomeError))
}

// Close 关闭连接
func (c *sqliteConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	c.logger.Info("closing sqlite connection")
	sqlDB, err := c.db.DB()
	if err != nil {
		c.logger.Error("failed to get sqlite db instance for closing", clog.Error(err))
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close sqlite connection", clog.Error(err))
		return err
	}

	c.db = nil
	c.metrics.active.Set(context.Background(), 0, metrics.L("connector", "sqlite"), metrics.L("name", c.cfg.Name))
	c.logger.Info("sqlite connection closed successfully")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *sqliteConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()

	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "sqlite connector[%s]", c.cfg.Name)
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrHealthCheck, "sqlite connector[%s]: %v", c.cfg.Name, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("sqlite health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "sqlite connector[%s]: %v", c.cfg.Name, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *sqliteConnector) IsHealthy() bool { return c.healthy.Load() }

func (c *sqliteConnector) Name() string { return c.cfg.Name }

func (c *sqliteConnector) Dialect() string { return "sqlite" }

// GetClient 返回 GORM 客户端
func (c *sqliteConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
