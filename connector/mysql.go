package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/xerrors"
)

type mysqlConnector struct {
	cfg     *MySQLConfig
	db      *gorm.DB
	logger  clog.Logger
	metrics connectionMetrics
	healthy atomic.Bool
	mu      sync.RWMutex
}

// NewMySQL 创建 MySQL 连接器，实际连接在 Connect 时建立
func NewMySQL(cfg *MySQLConfig, opts ...Option) (MySQLConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid mysql config")
	}

	opt := applyOptions(opts)
	return &mysqlConnector{
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("connector", "mysql"), clog.String("name", cfg.Name)),
		metrics: newConnectionMetrics(opt.meter),
	}, nil
}

// Connect 建立连接并配置连接池，已连接时直接返回
func (c *mysqlConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	c.logger.Info("attempting to connect to mysql",
		clog.String("host", c.cfg.Host),
		clog.Int("port", c.cfg.Port))

	db, err := gorm.Open(mysql.Open(c.cfg.dsn()), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		c.connectFailed(ctx, "failed to open mysql", err)
		return xerrors.Wrapf(ErrConnection, "mysql connector[%s]: %v", c.cfg.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.connectFailed(ctx, "failed to get mysql db instance", err)
		return xerrors.Wrapf(ErrConnection, "mysql connector[%s]: failed to get db instance: %v", c.cfg.Name, err)
	}

	sqlDB.SetMaxIdleConns(c.cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		c.connectFailed(ctx, "failed to ping mysql", err)
		return xerrors.Wrapf(ErrConnection, "mysql connector[%s]: ping failed: %v", c.cfg.Name, err)
	}

	c.db = db
	c.healthy.Store(true)
	c.metrics.attempts.Inc(ctx, metrics.L("connector", "mysql"), metrics.L(metrics.LabelOutcome, metrics.OutcomeSuccess))
	c.metrics.active.Set(ctx, 1, metrics.L("connector", "mysql"), metrics.L("name", c.cfg.Name))
	c.logger.Info("successfully connected to mysql",
		clog.String("host", c.cfg.Host),
		clog.String("database", c.cfg.Database))
	return nil
}

func (c *mysqlConnector) connectFailed(ctx context.Context, msg string, err error) {
	c.logger.Error(msg, clog.Error(err))
	c.metrics.attempts.Inc(ctx, metrics.L("connector", "mysql"), metrics.L(metrics.LabelOutcome, metrics.OutcomeError))
}

// Close 关闭连接
func (c *mysqlConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	c.logger.Info("closing mysql connection")
	sqlDB, err := c.db.DB()
	if err != nil {
		c.logger.Error("failed to get mysql db instance for closing", clog.Error(err))
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close mysql connection", clog.Error(err))
		return err
	}

	c.db = nil
	c.metrics.active.Set(context.Background(), 0, metrics.L("connector", "mysql"), metrics.L("name", c.cfg.Name))
	c.logger.Info("mysql connection closed successfully")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *mysqlConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()

	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "mysql connector[%s]", c.cfg.Name)
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrHealthCheck, "mysql connector[%s]: %v", c.cfg.Name, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("mysql health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "mysql connector[%s]: %v", c.cfg.Name, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *mysqlConnector) IsHealthy() bool { return c.healthy.Load() }

func (c *mysqlConnector) Name() string { return c.cfg.Name }

func (c *mysqlConnector) Dialect() string { return "mysql" }

// GetClient 返回 GORM 客户端
func (c *mysqlConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
