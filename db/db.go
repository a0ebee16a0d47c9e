// Package db 在连接器之上提供 GORM 访问入口：统一的日志、链路追踪与事务封装。
//
// 连接器拥有底层连接，db 组件只借用，Close 不会关闭连接。
//
//	conn, _ := connector.NewSQLite(&connector.SQLiteConfig{Path: "orchestrator.db"})
//	_ = conn.Connect(ctx)
//	database, _ := db.New(&db.Config{Driver: "sqlite", EnableTracing: true},
//		db.WithSQLiteConnector(conn), db.WithLogger(logger))
//
//	err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
//		return tx.Create(&row).Error
//	})
package db

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/xerrors"
)

// DB 数据库组件
type DB interface {
	// DB 返回绑定 ctx 的会话
	DB(ctx context.Context) *gorm.DB

	// Transaction 在事务中执行 fn，fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// AutoMigrate 按模型创建或补齐表结构
	AutoMigrate(ctx context.Context, models ...any) error

	// Dialect 返回底层方言
	Dialect() string

	Close() error
}

type database struct {
	client  *gorm.DB
	dialect string
	logger  clog.Logger
}

// New 创建 DB 组件
//
// Driver 决定使用哪个注入的连接器，连接器必须已经 Connect。
func New(cfg *Config, opts ...Option) (DB, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{logger: clog.Discard()}
	for _, o := range opts {
		o(&opt)
	}

	var conn connector.DatabaseConnector
	switch cfg.Driver {
	case DriverMySQL:
		if opt.mysqlConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorRequired, "mysql")
		}
		conn = opt.mysqlConnector
	case DriverSQLite:
		if opt.sqliteConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorRequired, "sqlite")
		}
		conn = opt.sqliteConnector
	}

	base := conn.GetClient()
	if base == nil {
		return nil, xerrors.Wrapf(ErrNotConnected, "%s connector[%s]", cfg.Driver, conn.Name())
	}

	gormDB := base.Session(&gorm.Session{
		Logger: newGormLogger(opt.logger, opt.silentMode, cfg.SlowThreshold),
	})

	if cfg.EnableTracing {
		if err := usePlugin(gormDB, tracingPlugin(opt)); err != nil {
			return nil, err
		}
	}

	opt.logger.Info("db component created",
		clog.String("driver", cfg.Driver),
		clog.String("connector", conn.Name()),
		clog.Bool("tracing", cfg.EnableTracing))

	return &database{client: gormDB, dialect: conn.Dialect(), logger: opt.logger}, nil
}

func tracingPlugin(opt options) gorm.Plugin {
	pluginOpts := []otelgorm.Option{otelgorm.WithoutMetrics()}
	if opt.tracer != nil {
		pluginOpts = append(pluginOpts, otelgorm.WithTracerProvider(opt.tracer))
	}
	return otelgorm.NewPlugin(pluginOpts...)
}

// usePlugin 同一连接上的插件只注册一次，回调在会话之间共享
func usePlugin(gormDB *gorm.DB, plugin gorm.Plugin) error {
	if _, ok := gormDB.Config.Plugins[plugin.Name()]; ok {
		return nil
	}
	if err := gormDB.Use(plugin); err != nil {
		return xerrors.Wrapf(err, "register gorm plugin %s", plugin.Name())
	}
	return nil
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

func (d *database) AutoMigrate(ctx context.Context, models ...any) error {
	if err := d.client.WithContext(ctx).AutoMigrate(models...); err != nil {
		return xerrors.Wrap(err, "auto migrate")
	}
	return nil
}

func (d *database) Dialect() string {
	return d.dialect
}

// Close 不关闭连接，连接由连接器负责释放
func (d *database) Close() error {
	return nil
}
