// Package registry 维护对端云目录，跨云编排据此决定向哪些云广播全局服务发现。
//
// 两种来源：
//   - Static：配置文件中的固定列表
//   - etcd：各云的编排实例以租约注册自身，目录随实例上下线自动变化
//
// ## 基本使用
//
//	etcdConn, _ := connector.NewEtcd(&cfg.Etcd, connector.WithLogger(logger))
//	defer etcdConn.Close()
//	etcdConn.Connect(ctx)
//
//	reg, _ := registry.New(etcdConn, &registry.Config{
//		Namespace:  "/orchestrator/clouds",
//		DefaultTTL: 30 * time.Second,
//	}, registry.WithLogger(logger))
//	defer reg.Close()
//
//	_ = reg.Register(ctx, ownCloud, 0)
//	peers, _ := reg.List(ctx)
//
// ## Etcd 存储结构
//
//	<namespace>/<operator>/<cloud_name> -> JSON(model.Cloud)
//
// 例如 `/orchestrator/clouds/aitia/testcloud2`。
//
// registry 借用 Etcd 连接器的客户端，不负责连接的生命周期。
package registry

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/orchestrator/clog"
	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/model"
	"github.com/ceyewan/orchestrator/xerrors"
)

// New 创建基于 Etcd 的 Registry
func New(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Registry, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "etcd connector is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := &options{logger: clog.Discard()}
	for _, o := range opts {
		o(opt)
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "etcd client is nil")
	}

	return &etcdRegistry{
		client:     client,
		cfg:        cfg,
		logger:     opt.logger,
		keepAlives: make(map[model.CloudKey]*leaseKeepAlive),
		watchers:   make(map[uint64]context.CancelFunc),
		stopChan:   make(chan struct{}),
	}, nil
}

// leaseKeepAlive 租约保活信息
type leaseKeepAlive struct {
	leaseID     clientv3.LeaseID
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	cancel      context.CancelFunc
	cloud       model.CloudKey
	closed      atomic.Bool
}

type etcdRegistry struct {
	client *clientv3.Client
	cfg    *Config
	logger clog.Logger

	keepAlives map[model.CloudKey]*leaseKeepAlive
	watchers   map[uint64]context.CancelFunc
	watchSeq   uint64
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     atomic.Bool
}

func (r *etcdRegistry) ensureOpen() error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	return nil
}

// Register 注册云并启动租约续约
func (r *etcdRegistry) Register(ctx context.Context, cloud model.Cloud, ttl time.Duration) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if err := cloud.Validate(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = r.cfg.DefaultTTL
	}
	if ttl < time.Second {
		return ErrInvalidTTL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cloud.Key()
	if _, exists := r.keepAlives[key]; exists {
		return ErrCloudAlreadyRegistered
	}

	value, err := json.Marshal(cloud)
	if err != nil {
		return xerrors.Wrap(err, "marshal cloud")
	}

	lease, err := r.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		r.logger.Error("failed to grant lease", clog.String("cloud", string(key)), clog.Error(err))
		return xerrors.Mark(xerrors.Wrap(err, "grant lease"), xerrors.ErrUnavailable)
	}

	etcdKey := r.buildKey(cloud)
	if _, err = r.client.Put(ctx, etcdKey, string(value), clientv3.WithLease(lease.ID)); err != nil {
		r.revoke(ctx, key, lease.ID)
		r.logger.Error("failed to put cloud", clog.String("key", etcdKey), clog.Error(err))
		return xerrors.Mark(xerrors.Wrap(err, "put cloud"), xerrors.ErrUnavailable)
	}

	keepAliveCtx, keepAliveCancel := context.WithCancel(context.Background())
	keepAliveCh, err := r.client.KeepAlive(keepAliveCtx, lease.ID)
	if err != nil {
		keepAliveCancel()
		r.revoke(ctx, key, lease.ID)
		return xerrors.Mark(xerrors.Wrap(err, "keepalive"), xerrors.ErrUnavailable)
	}

	ka := &leaseKeepAlive{
		leaseID:     lease.ID,
		keepAliveCh: keepAliveCh,
		cancel:      keepAliveCancel,
		cloud:       key,
	}
	r.keepAlives[key] = ka

	r.wg.Add(1)
	go r.monitorKeepAlive(ka)

	r.logger.Info("cloud registered", clog.String("cloud", string(key)), clog.Duration("ttl", ttl))
	return nil
}

// Deregister 撤销租约，关联的 key 随之删除
func (r *etcdRegistry) Deregister(ctx context.Context, cloud model.Cloud) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}

	key := cloud.Key()
	r.mu.Lock()
	ka, exists := r.keepAlives[key]
	if !exists {
		r.mu.Unlock()
		return ErrCloudNotFound
	}
	ka.closed.Store(true)
	ka.cancel()
	delete(r.keepAlives, key)
	r.mu.Unlock()

	if _, err := r.client.Revoke(ctx, ka.leaseID); err != nil {
		r.logger.Error("failed to revoke lease", clog.String("cloud", string(key)), clog.Error(err))
		return xerrors.Mark(xerrors.Wrap(err, "revoke lease"), xerrors.ErrUnavailable)
	}

	r.logger.Info("cloud deregistered", clog.String("cloud", string(key)))
	return nil
}

// List 按 key 字典序返回所有已注册的云
func (r *etcdRegistry) List(ctx context.Context) ([]model.Cloud, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	resp, err := r.client.Get(ctx, r.prefix(), clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		r.logger.Error("failed to list clouds", clog.Error(err))
		return nil, xerrors.Mark(xerrors.Wrap(err, "list clouds"), xerrors.ErrUnavailable)
	}

	clouds := make([]model.Cloud, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var cloud model.Cloud
		if err := json.Unmarshal(kv.Value, &cloud); err != nil {
			r.logger.Warn("failed to unmarshal cloud", clog.String("key", string(kv.Key)), clog.Error(err))
			continue
		}
		clouds = append(clouds, cloud)
	}
	return clouds, nil
}

// Watch 监听目录变化
// channel 关闭或出错时自动重连，使用 WithRev 从上次处理的位置继续，避免事件丢失
func (r *etcdRegistry) Watch(ctx context.Context) (<-chan Event, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	eventCh := make(chan Event, 100)
	watchCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.watchSeq++
	watchID := r.watchSeq
	r.watchers[watchID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(eventCh)
		defer func() {
			r.mu.Lock()
			delete(r.watchers, watchID)
			r.mu.Unlock()
		}()
		r.watchLoop(watchCtx, eventCh)
	}()

	return eventCh, nil
}

func (r *etcdRegistry) watchLoop(ctx context.Context, eventCh chan<- Event) {
	prefix := r.prefix()
	var lastRev int64

	for {
		watchOpts := []clientv3.OpOption{clientv3.WithPrefix()}
		if lastRev > 0 {
			watchOpts = append(watchOpts, clientv3.WithRev(lastRev+1))
		}
		watchCh := r.client.Watch(ctx, prefix, watchOpts...)
		r.logger.Debug("watch started", clog.Int64("from_revision", lastRev+1))

	inner:
		for {
			select {
			case <-ctx.Done():
				return
			case wresp, ok := <-watchCh:
				if !ok {
					r.logger.Warn("watch channel closed, will retry")
					break inner
				}
				if err := wresp.Err(); err != nil {
					if xerrors.Is(err, rpctypes.ErrCompacted) {
						r.logger.Warn("watch revision compacted, resyncing")
						if resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix()); err == nil {
							lastRev = resp.Header.Revision
						}
					} else {
						r.logger.Error("watch error, will retry", clog.Error(err))
					}
					break inner
				}

				for _, ev := range wresp.Events {
					if ev.Kv.ModRevision > lastRev {
						lastRev = ev.Kv.ModRevision
					}
					event, ok := r.toEvent(ev)
					if !ok {
						continue
					}
					select {
					case eventCh <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.RetryInterval):
		}
	}
}

func (r *etcdRegistry) toEvent(ev *clientv3.Event) (Event, bool) {
	switch ev.Type {
	case clientv3.EventTypePut:
		var cloud model.Cloud
		if err := json.Unmarshal(ev.Kv.Value, &cloud); err != nil {
			r.logger.Warn("failed to unmarshal watch event", clog.String("key", string(ev.Kv.Key)), clog.Error(err))
			return Event{}, false
		}
		return Event{Type: EventTypePut, Cloud: cloud}, true
	case clientv3.EventTypeDelete:
		// Key 格式: <namespace>/<operator>/<cloud_name>
		rest := strings.TrimPrefix(string(ev.Kv.Key), r.prefix())
		operator, name, _ := strings.Cut(rest, "/")
		return Event{Type: EventTypeDelete, Cloud: model.Cloud{Operator: operator, CloudName: name}}, true
	default:
		return Event{}, false
	}
}

// Close 停止后台任务并撤销本实例持有的租约，可重复调用
func (r *etcdRegistry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r.mu.Lock()
	close(r.stopChan)
	for _, cancelFunc := range r.watchers {
		cancelFunc()
	}
	leases := make(map[model.CloudKey]clientv3.LeaseID, len(r.keepAlives))
	for key, ka := range r.keepAlives {
		leases[key] = ka.leaseID
		ka.closed.Store(true)
		ka.cancel()
		delete(r.keepAlives, key)
	}
	r.mu.Unlock()

	for key, leaseID := range leases {
		r.revoke(ctx, key, leaseID)
	}

	r.wg.Wait()
	r.logger.Info("registry stopped")
	return nil
}

func (r *etcdRegistry) revoke(ctx context.Context, key model.CloudKey, leaseID clientv3.LeaseID) {
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		r.logger.Warn("failed to revoke lease", clog.String("cloud", string(key)), clog.Error(err))
	}
}

// monitorKeepAlive 监控租约续约
// channel 关闭表示租约失效或连接断开，此处不重新注册，由运维根据日志告警处理
func (r *etcdRegistry) monitorKeepAlive(ka *leaseKeepAlive) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		case resp, ok := <-ka.keepAliveCh:
			if !ok {
				if ka.closed.Load() {
					return
				}
				r.logger.Error("keepalive channel closed, lease expired or connection lost",
					clog.String("cloud", string(ka.cloud)),
					clog.Int64("lease_id", int64(ka.leaseID)))
				r.mu.Lock()
				if current, exists := r.keepAlives[ka.cloud]; exists && current == ka {
					delete(r.keepAlives, ka.cloud)
				}
				r.mu.Unlock()
				return
			}
			r.logger.Debug("keepalive renewed",
				clog.String("cloud", string(ka.cloud)),
				clog.Int64("ttl", resp.TTL))
		}
	}
}

func (r *etcdRegistry) buildKey(cloud model.Cloud) string {
	return r.prefix() + cloud.Operator + "/" + cloud.CloudName
}

func (r *etcdRegistry) prefix() string {
	return strings.TrimSuffix(r.cfg.Namespace, "/") + "/"
}
