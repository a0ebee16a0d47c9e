package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/orchestrator/clog"
)

// limiterWrapper 包装 rate.Limiter 并记录最后访问时间
type limiterWrapper struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type standaloneLimiter struct {
	logger    clog.Logger
	metrics   *limiterMetrics
	limiters  sync.Map // map[string]*limiterWrapper
	stopCh    chan struct{}
	closeOnce sync.Once
}

func newStandalone(cfg *Config, logger clog.Logger, m *limiterMetrics) Limiter {
	l := &standaloneLimiter{
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
	go l.cleanup(cfg.CleanupInterval, cfg.IdleTimeout)

	logger.Info("standalone rate limiter created",
		clog.Duration("cleanup_interval", cfg.CleanupInterval),
		clog.Duration("idle_timeout", cfg.IdleTimeout))
	return l
}

func (l *standaloneLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *standaloneLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := validateRequest(key, limit, n); err != nil {
		return false, err
	}

	wrapper := l.getLimiter(key, limit)

	now := time.Now()
	wrapper.mu.Lock()
	allowed := wrapper.limiter.AllowN(now, n)
	wrapper.lastSeen = now
	wrapper.mu.Unlock()

	l.metrics.observe(ctx, ModeStandalone, allowed)
	if !allowed {
		l.logger.Debug("rate limited",
			clog.String("key", key),
			clog.Float64("rate", limit.Rate),
			clog.Int("burst", limit.Burst))
	}
	return allowed, nil
}

// getLimiter 按 key 与规则取得限流器，规则变化时使用新桶
func (l *standaloneLimiter) getLimiter(key string, limit Limit) *limiterWrapper {
	cacheKey := fmt.Sprintf("%s:%v:%d", key, limit.Rate, limit.Burst)
	if v, ok := l.limiters.Load(cacheKey); ok {
		return v.(*limiterWrapper)
	}

	wrapper := &limiterWrapper{
		limiter:  rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst),
		lastSeen: time.Now(),
	}
	actual, _ := l.limiters.LoadOrStore(cacheKey, wrapper)
	return actual.(*limiterWrapper)
}

func (l *standaloneLimiter) cleanup(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			count := 0
			l.limiters.Range(func(key, value any) bool {
				wrapper := value.(*limiterWrapper)
				wrapper.mu.Lock()
				idle := now.Sub(wrapper.lastSeen)
				wrapper.mu.Unlock()

				if idle > idleTimeout {
					l.limiters.Delete(key)
					count++
				}
				return true
			})
			if count > 0 {
				l.logger.Debug("cleaned up idle limiters", clog.Int("count", count))
			}
		case <-l.stopCh:
			return
		}
	}
}

// Close 停止清理协程，可重复调用
func (l *standaloneLimiter) Close() error {
	l.closeOnce.Do(func() { close(l.stopCh) })
	return nil
}
