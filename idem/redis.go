package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/orchestrator/connector"
	"github.com/ceyewan/orchestrator/xerrors"
)

// 仅当锁仍属于调用方时删除
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 写入结果并释放调用方持有的锁
var setResultScript = redis.NewScript(`
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
end
return 1
`)

type redisStore struct {
	conn   connector.RedisConnector
	prefix string
}

func newRedisStore(conn connector.RedisConnector, prefix string) *redisStore {
	return &redisStore{conn: conn, prefix: prefix}
}

func (s *redisStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	token, err := newLockToken()
	if err != nil {
		return "", false, err
	}
	ok, err := s.conn.GetClient().SetNX(ctx, s.prefix+key+lockSuffix, string(token), ttl).Result()
	if err != nil {
		return "", false, xerrors.Mark(xerrors.Wrap(err, "idem: acquire lock"), xerrors.ErrUnavailable)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (s *redisStore) Unlock(ctx context.Context, key string, token LockToken) error {
	keys := []string{s.prefix + key + lockSuffix}
	if err := unlockScript.Run(ctx, s.conn.GetClient(), keys, string(token)).Err(); err != nil {
		return xerrors.Mark(xerrors.Wrap(err, "idem: release lock"), xerrors.ErrUnavailable)
	}
	return nil
}

func (s *redisStore) SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error {
	keys := []string{s.prefix + key + lockSuffix, s.prefix + key + resultSuffix}
	err := setResultScript.Run(ctx, s.conn.GetClient(), keys, string(token), val, ttl.Milliseconds()).Err()
	if err != nil {
		return xerrors.Mark(xerrors.Wrap(err, "idem: set result"), xerrors.ErrUnavailable)
	}
	return nil
}

func (s *redisStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	val, err := s.conn.GetClient().Get(ctx, s.prefix+key+resultSuffix).Bytes()
	if xerrors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "idem: get result"), xerrors.ErrUnavailable)
	}
	return val, nil
}
