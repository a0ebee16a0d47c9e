package idem

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ceyewan/orchestrator/xerrors"
)

// Store 幂等记录后端
//
// 一个键有三种状态：不存在、处理中（Lock 成功）、已完成（SetResult 之后）。
type Store interface {
	// Lock 标记处理中，键已被锁定时返回 false
	Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error)

	// Unlock 释放锁，令牌不匹配时不做任何事
	Unlock(ctx context.Context, key string, token LockToken) error

	// SetResult 保存结果并释放锁
	SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error

	// GetResult 读取已完成的结果，不存在时返回 ErrResultNotFound
	GetResult(ctx context.Context, key string) ([]byte, error)
}

// LockToken 锁持有者凭证
type LockToken string

const (
	lockSuffix    = ":lock"
	resultSuffix  = ":result"
	lockTokenSize = 16
)

func newLockToken() (LockToken, error) {
	b := make([]byte, lockTokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", xerrors.Wrap(err, "idem: generate lock token")
	}
	return LockToken(hex.EncodeToString(b)), nil
}

type memoryLock struct {
	token     LockToken
	expiresAt time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryStore 单实例后端，过期记录在访问时清理
type memoryStore struct {
	mu      sync.Mutex
	prefix  string
	now     func() time.Time
	locks   map[string]memoryLock
	results map[string]memoryEntry
}

func newMemoryStore(prefix string) *memoryStore {
	return &memoryStore{
		prefix:  prefix,
		now:     time.Now,
		locks:   make(map[string]memoryLock),
		results: make(map[string]memoryEntry),
	}
}

func (s *memoryStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	token, err := newLockToken()
	if err != nil {
		return "", false, err
	}

	lockKey := s.prefix + key + lockSuffix
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[lockKey]; ok && l.expiresAt.After(now) {
		return "", false, nil
	}
	s.locks[lockKey] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (s *memoryStore) Unlock(ctx context.Context, key string, token LockToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lockKey := s.prefix + key + lockSuffix

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[lockKey]; ok && l.token == token {
		delete(s.locks, lockKey)
	}
	return nil
}

func (s *memoryStore) SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lockKey := s.prefix + key + lockSuffix
	resultKey := s.prefix + key + resultSuffix

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[resultKey] = memoryEntry{
		value:     append([]byte(nil), val...),
		expiresAt: s.now().Add(ttl),
	}
	if l, ok := s.locks[lockKey]; ok && l.token == token {
		delete(s.locks, lockKey)
	}
	return nil
}

func (s *memoryStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resultKey := s.prefix + key + resultSuffix

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[resultKey]
	if !ok {
		return nil, ErrResultNotFound
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.results, resultKey)
		return nil, ErrResultNotFound
	}
	return append([]byte(nil), entry.value...), nil
}
