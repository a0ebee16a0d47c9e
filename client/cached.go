package client

import (
	"context"
	"time"

	"github.com/ceyewan/orchestrator/cache"
	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

// cachedAuthorization 按 consumer|provider|service 缓存授权判定
//
// 只缓存授权系统实际返回的判定，缺失的提供者不缓存，下次仍会回源。
type cachedAuthorization struct {
	inner  Authorization
	cache  cache.Cache
	ttl    time.Duration
	logger clog.Logger
}

// NewCachedAuthorization 为 inner 加一层读穿缓存，ttl <= 0 时使用缓存的默认 TTL
func NewCachedAuthorization(inner Authorization, c cache.Cache, ttl time.Duration, opts ...Option) Authorization {
	o := applyOptions(opts)
	return &cachedAuthorization{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		logger: o.logger,
	}
}

func authKey(consumer, provider model.System, service model.Service) string {
	return model.AuthorizationRelation{Consumer: consumer, Provider: provider, Service: service}.Key()
}

func (a *cachedAuthorization) Check(ctx context.Context, consumer model.System, providers []model.System, service model.Service) (map[model.SystemKey]bool, error) {
	result := make(map[model.SystemKey]bool, len(providers))
	var misses []model.System

	for _, p := range providers {
		var allowed bool
		err := a.cache.Get(ctx, authKey(consumer, p, service), &allowed)
		switch {
		case err == nil:
			result[p.Key()] = allowed
		case xerrors.Is(err, cache.ErrMiss):
			misses = append(misses, p)
		default:
			a.logger.WarnContext(ctx, "authorization cache read failed", clog.Error(err))
			misses = append(misses, p)
		}
	}

	if len(misses) == 0 {
		return result, nil
	}

	fresh, err := a.inner.Check(ctx, consumer, misses, service)
	if err != nil {
		return nil, err
	}

	for _, p := range misses {
		allowed, ok := fresh[p.Key()]
		if !ok {
			continue
		}
		result[p.Key()] = allowed
		if err := a.cache.Set(ctx, authKey(consumer, p, service), allowed, a.ttl); err != nil {
			a.logger.WarnContext(ctx, "authorization cache write failed", clog.Error(err))
		}
	}
	return result, nil
}

// CheckCloud 跨云授权每次都回源
func (a *cachedAuthorization) CheckCloud(ctx context.Context, cloud model.Cloud, service model.Service) (bool, error) {
	return a.inner.CheckCloud(ctx, cloud, service)
}
