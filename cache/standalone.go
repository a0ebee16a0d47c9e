package cache

import (
	"context"
	"reflect"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/xerrors"
)

// foreverTTL 未配置 DefaultTTL 时的写入过期时间（100 年）
const foreverTTL = 24 * 365 * 100 * time.Hour

type standaloneCache struct {
	cache      *otter.Cache[string, any]
	defaultTTL time.Duration
	logger     clog.Logger
	stats      *stats
}

func newStandalone(cfg *Config, logger clog.Logger, st *stats) (Cache, error) {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = foreverTTL
	}

	// 写入过期与 Redis TTL 语义一致：从写入开始计算，读取不续期
	c, err := otter.New(&otter.Options[string, any]{
		MaximumSize:      cfg.Standalone.Capacity,
		ExpiryCalculator: otter.ExpiryWriting[string, any](ttl),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build otter cache")
	}

	logger.Info("standalone cache created",
		clog.Int("capacity", cfg.Standalone.Capacity),
		clog.Duration("default_ttl", cfg.DefaultTTL))

	return &standaloneCache{cache: c, defaultTTL: ttl, logger: logger, stats: st}, nil
}

func (c *standaloneCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.cache.Set(key, value)
	if ttl > 0 && ttl != c.defaultTTL {
		c.cache.SetExpiresAfter(key, ttl)
	}
	return nil
}

func (c *standaloneCache) Get(ctx context.Context, key string, dest any) error {
	val, ok := c.cache.GetIfPresent(key)
	if !ok {
		c.stats.miss(ctx)
		return ErrMiss
	}
	c.stats.hit(ctx)
	return assignValue(val, dest)
}

func (c *standaloneCache) Delete(_ context.Context, key string) error {
	c.cache.Invalidate(key)
	return nil
}

func (c *standaloneCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.cache.GetIfPresent(key)
	return ok, nil
}

func (c *standaloneCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	if _, ok := c.cache.GetIfPresent(key); !ok {
		return ErrMiss
	}
	c.cache.SetExpiresAfter(key, ttl)
	return nil
}

func (c *standaloneCache) Close() error {
	c.cache.InvalidateAll()
	c.cache.StopAllGoroutines()
	return nil
}

// assignValue 把缓存中的原始对象赋给 dest 指向的变量
//
// 这是浅拷贝：缓存的 map/slice/指针与 dest 共享底层数据，取出的值应视为只读。
func assignValue(val any, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return xerrors.Wrap(ErrInvalidDest, "dest must be a non-nil pointer")
	}
	dv = dv.Elem()

	if val == nil {
		dv.SetZero()
		return nil
	}

	sv := reflect.ValueOf(val)
	switch {
	case sv.Type().AssignableTo(dv.Type()):
		dv.Set(sv)
	case sv.Type().ConvertibleTo(dv.Type()) && sameKindFamily(sv.Kind(), dv.Kind()):
		dv.Set(sv.Convert(dv.Type()))
	default:
		return xerrors.Wrapf(ErrInvalidDest, "cannot assign %T to %s", val, dv.Type())
	}
	return nil
}

// sameKindFamily 只允许同族数值间转换，避免 int 被转换成 string
func sameKindFamily(a, b reflect.Kind) bool {
	return kindFamily(a) != 0 && kindFamily(a) == kindFamily(b)
}

func kindFamily(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return 1
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return 2
	case reflect.Float32, reflect.Float64:
		return 3
	default:
		return 0
	}
}
