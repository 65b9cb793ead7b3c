// Package idempotency caches the first successful response for a client
// supplied Idempotency-Key so retries replay it instead of re-executing.
package idempotency

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInProgress = errors.New("a request with this idempotency key is in progress")

// inflight marks a claimed key with no stored response yet.
var inflight = []byte("\x00inflight")

const claimTTL = time.Minute

// Store is the idempotency cache.
//
// Begin returns the stored response for key, ErrInProgress while another
// caller owns it, or (nil, nil) when the caller now owns the key and must
// follow with Complete or Release.
type Store interface {
	Begin(ctx context.Context, key string) ([]byte, error)
	Complete(ctx context.Context, key string, resp []byte) error
	Release(ctx context.Context, key string) error
}

// --- memory ---

type entry struct {
	val     []byte
	expires time.Time
}

type Memory struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]entry
	now func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, m: make(map[string]entry), now: time.Now}
}

func (s *Memory) Begin(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.m[key]; ok && now.Before(e.expires) {
		if bytes.Equal(e.val, inflight) {
			return nil, ErrInProgress
		}
		return e.val, nil
	}
	s.m[key] = entry{val: inflight, expires: now.Add(claimTTL)}
	return nil, nil
}

func (s *Memory) Complete(_ context.Context, key string, resp []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = entry{val: append([]byte(nil), resp...), expires: s.now().Add(s.ttl)}
	s.sweep()
	return nil
}

func (s *Memory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// sweep drops expired entries; caller holds mu.
func (s *Memory) sweep() {
	now := s.now()
	for k, e := range s.m {
		if !now.Before(e.expires) {
			delete(s.m, k)
		}
	}
}

// --- redis ---

type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, prefix: "idem:"}
}

func (s *Redis) Begin(ctx context.Context, key string) ([]byte, error) {
	k := s.prefix + key
	ok, err := s.rdb.SetNX(ctx, k, inflight, claimTTL).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	val, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = s.rdb.SetNX(ctx, k, inflight, claimTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, err
	}
	if bytes.Equal(val, inflight) {
		return nil, ErrInProgress
	}
	return val, nil
}

func (s *Redis) Complete(ctx context.Context, key string, resp []byte) error {
	return s.rdb.Set(ctx, s.prefix+key, resp, s.ttl).Err()
}

func (s *Redis) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
