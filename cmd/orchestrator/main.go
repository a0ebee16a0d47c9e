// Command orchestrator 启动编排服务。
//
//	orchestrator -config ./configs
//
// 配置文件名固定为 orchestrator.yaml，环境变量前缀为 ORCH，
// 如 ORCH_SERVER_ADDR=:9441 覆盖 server.addr。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/ceyewan/orchestrator/api"
	"github.com/ceyewan/orchestrator/auth"
	"github.com/ceyewan/orchestrator/breaker"
	"github.com/ceyewan/orchestrator/cache"
	"github.com/ceyewan/orchestrator/client"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/config"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/db"
	"github.com/ceyewan/orchestrator/idem"
	"github.com/ceyewan/orchestrator/metrics"
	"github.com/ceyewan/orchestrator/orchestrator"
	"github.com/ceyewan/orchestrator/ratelimit"
	"github.com/ceyewan/orchestrator/registry"
	"github.com/ceyewan/orchestrator/store"
	"github.com/ceyewan/orchestrator/trace"
	"github.com/ceyewan/orchestrator/xerrors"
)

func main() {
	configDir := flag.String("config", "./configs", "directory containing orchestrator.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}
}

// closers 按注册的逆序释放资源
type closers struct {
	logger clog.Logger
	fns    []namedCloser
}

type namedCloser struct {
	name string
	fn   func(ctx context.Context) error
}

func (c *closers) add(name string, fn func(ctx context.Context) error) {
	c.fns = append(c.fns, namedCloser{name: name, fn: fn})
}

func (c *closers) closeAll(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i].fn(ctx); err != nil {
			c.logger.Error("release failed", clog.String("resource", c.fns[i].name), clog.Error(err))
		}
	}
}

func run(ctx context.Context, configDir string) error {
	loader, err := config.New(
		config.WithConfigName("orchestrator"),
		config.WithConfigPaths(configDir, "."),
		config.WithEnvPrefix("ORCH"),
	)
	if err != nil {
		return err
	}
	if err := loader.Load(ctx); err != nil {
		return err
	}
	cfg, err := config.Load(ctx, loader)
	if err != nil {
		return err
	}

	logger, err := clog.New(&cfg.Log, clog.WithStandardContext(), clog.WithTraceContext())
	if err != nil {
		return xerrors.Wrap(err, "create logger")
	}
	logger = logger.With(clog.String("app", cfg.App.Name), clog.String("env", cfg.App.Env))

	res := &closers{logger: logger}
	defer res.closeAll(cfg.Server.ShutdownTimeout + 5*time.Second)

	shutdownTrace, err := trace.Init(&cfg.Trace)
	if err != nil {
		return xerrors.Wrap(err, "init trace")
	}
	res.add("trace", shutdownTrace)

	meter, err := metrics.New(&cfg.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return xerrors.Wrap(err, "init metrics")
	}
	res.add("metrics", meter.Shutdown)

	st, err := openStore(ctx, cfg, logger, meter, res)
	if err != nil {
		return err
	}

	clientOpts := []client.Option{client.WithLogger(logger), client.WithMeter(meter)}
	if cfg.Breaker.Enabled {
		cb, err := breaker.New(&cfg.Breaker.Config,
			breaker.WithLogger(logger),
			breaker.WithMeter(meter),
			breaker.WithFailureFunc(collaboratorFailure))
		if err != nil {
			return xerrors.Wrap(err, "create breaker")
		}
		clientOpts = append(clientOpts, client.WithBreaker(cb))
	}
	clients, err := client.New(&cfg.Collaborators, clientOpts...)
	if err != nil {
		return xerrors.Wrap(err, "create collaborator clients")
	}

	var redisConn connector.RedisConnector
	if cfg.NeedsRedis() {
		redisConn, err = connector.NewRedis(&cfg.Redis, connector.WithLogger(logger), connector.WithMeter(meter))
		if err != nil {
			return xerrors.Wrap(err, "create redis connector")
		}
		res.add("redis", func(context.Context) error { return redisConn.Close() })
		if err := redisConn.Connect(ctx); err != nil {
			return xerrors.Wrap(err, "connect redis")
		}
	}

	if cfg.Cache.Enabled {
		authzCache, err := cache.New(&cfg.Cache.Config,
			cache.WithLogger(logger),
			cache.WithMeter(meter),
			cache.WithRedisConnector(redisConn))
		if err != nil {
			return xerrors.Wrap(err, "create authorization cache")
		}
		res.add("cache", func(context.Context) error { return authzCache.Close() })
		clients.Authorization = client.NewCachedAuthorization(clients.Authorization, authzCache,
			cfg.Cache.DefaultTTL, client.WithLogger(logger), client.WithMeter(meter))
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMeter(meter),
		orchestrator.WithStore(st),
	}
	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithMeter(meter),
		api.WithStore(st),
	}

	if cfg.Auth.Enabled() {
		authenticator, err := auth.New(&cfg.Auth, auth.WithLogger(logger), auth.WithMeter(meter))
		if err != nil {
			return xerrors.Wrap(err, "create authenticator")
		}
		orchOpts = append(orchOpts, orchestrator.WithAuthenticator(authenticator))
		if cfg.Auth.ProtectManagement {
			apiOpts = append(apiOpts, api.WithManagementAuth(authenticator, cfg.Auth.TokenHeadName))
		}
	}

	if cfg.Idempotency.Enabled {
		guard, err := idem.New(&cfg.Idempotency,
			idem.WithLogger(logger),
			idem.WithMeter(meter),
			idem.WithRedisConnector(redisConn))
		if err != nil {
			return xerrors.Wrap(err, "create idempotency guard")
		}
		apiOpts = append(apiOpts, api.WithIdempotency(guard))
	}

	if cfg.Registry.Enabled {
		directory, err := openRegistry(ctx, cfg, logger, meter, res)
		if err != nil {
			return err
		}
		if cfg.Orchestrator.PeerSource == orchestrator.PeerSourceEtcd {
			orchOpts = append(orchOpts, orchestrator.WithPeerDirectory(directory))
		}
	}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(&cfg.RateLimit,
			ratelimit.WithLogger(logger),
			ratelimit.WithMeter(meter),
			ratelimit.WithRedisConnector(redisConn))
		if err != nil {
			return xerrors.Wrap(err, "create rate limiter")
		}
		res.add("ratelimit", func(context.Context) error { return limiter.Close() })
		apiOpts = append(apiOpts, api.WithRateLimit(limiter, cfg.RateLimit.Default))
	}

	orch, err := orchestrator.New(&cfg.Orchestrator, clients, orchOpts...)
	if err != nil {
		return xerrors.Wrap(err, "create orchestrator")
	}

	server, err := api.New(&cfg.Server, orch, apiOpts...)
	if err != nil {
		return xerrors.Wrap(err, "create http server")
	}

	logger.Info("orchestrator started",
		clog.String("cloud", orch.Cloud().CloudName),
		clog.String("store_policy", string(cfg.Orchestrator.StorePolicy)),
		clog.String("peer_source", string(cfg.Orchestrator.PeerSource)))

	return server.Run(ctx)
}

// openStore 连接编排存储数据库并按需建表
func openStore(ctx context.Context, cfg *config.AppConfig, logger clog.Logger, meter metrics.Meter, res *closers) (store.Store, error) {
	dbOpts := []db.Option{db.WithLogger(logger), db.WithTracer(otel.GetTracerProvider())}

	switch cfg.Database.Driver {
	case db.DriverMySQL:
		conn, err := connector.NewMySQL(&cfg.Database.MySQL, connector.WithLogger(logger), connector.WithMeter(meter))
		if err != nil {
			return nil, xerrors.Wrap(err, "create mysql connector")
		}
		res.add("mysql", func(context.Context) error { return conn.Close() })
		if err := conn.Connect(ctx); err != nil {
			return nil, xerrors.Wrap(err, "connect mysql")
		}
		dbOpts = append(dbOpts, db.WithMySQLConnector(conn))
	default:
		conn, err := connector.NewSQLite(&cfg.Database.SQLite, connector.WithLogger(logger), connector.WithMeter(meter))
		if err != nil {
			return nil, xerrors.Wrap(err, "create sqlite connector")
		}
		res.add("sqlite", func(context.Context) error { return conn.Close() })
		if err := conn.Connect(ctx); err != nil {
			return nil, xerrors.Wrap(err, "connect sqlite")
		}
		dbOpts = append(dbOpts, db.WithSQLiteConnector(conn))
	}

	database, err := db.New(&cfg.Database.Config, dbOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create db")
	}

	st, err := store.New(database, store.WithLogger(logger))
	if err != nil {
		return nil, xerrors.Wrap(err, "create store")
	}
	if cfg.Database.AutoMigrate {
		if err := st.AutoMigrate(ctx); err != nil {
			return nil, xerrors.Wrap(err, "migrate store")
		}
	}
	return st, nil
}

// openRegistry 连接 etcd 对端目录并以租约登记本云
func openRegistry(ctx context.Context, cfg *config.AppConfig, logger clog.Logger, meter metrics.Meter, res *closers) (registry.Registry, error) {
	conn, err := connector.NewEtcd(&cfg.Etcd, connector.WithLogger(logger), connector.WithMeter(meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "create etcd connector")
	}
	res.add("etcd", func(context.Context) error { return conn.Close() })
	if err := conn.Connect(ctx); err != nil {
		return nil, xerrors.Wrap(err, "connect etcd")
	}

	reg, err := registry.New(conn, &cfg.Registry, registry.WithLogger(logger))
	if err != nil {
		return nil, xerrors.Wrap(err, "create registry")
	}
	res.add("registry", func(context.Context) error { return reg.Close() })

	if err := reg.Register(ctx, cfg.Orchestrator.Cloud.Cloud(), 0); err != nil {
		return nil, xerrors.Wrap(err, "register own cloud")
	}
	return reg, nil
}

// collaboratorFailure 只有协作方不可用才计入熔断，调用方取消不算
func collaboratorFailure(err error) bool {
	return xerrors.Is(err, xerrors.ErrUnavailable) && !xerrors.Is(err, xerrors.ErrCanceled)
}
