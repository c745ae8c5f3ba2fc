// Package idempotency replays the stored response of a request submitted
// again with the same Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Record is what is kept per key. A pending record marks a request that
// is still being processed.
type Record struct {
	Pending     bool   `json:"pending"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Store claims keys and keeps their responses.
type Store interface {
	// Begin claims key. When the key is already known it returns the
	// stored record and false.
	Begin(ctx context.Context, key string) (Record, bool, error)
	Complete(ctx context.Context, key string, rec Record) error
	Release(ctx context.Context, key string) error
}

// RedisStore keeps records in Redis with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string {
	return fmt.Sprintf("idempotent-key:%s", key)
}

func (s *RedisStore) Begin(ctx context.Context, key string) (Record, bool, error) {
	pending, _ := json.Marshal(Record{Pending: true})
	ok, err := s.rdb.SetNX(ctx, redisKey(key), pending, s.ttl).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return Record{}, true, nil
	}

	val, err := s.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SetNX and Get; treat as in progress
			return Record{Pending: true}, false, nil
		}
		return Record{}, false, fmt.Errorf("get idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record) error {
	rec.Pending = false
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(key), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// MemoryStore keeps records in process. Used when REDIS_URL is unset.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec     Record
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		records: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Begin(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.records[key]; ok && now.Before(e.expires) {
		return e.rec, false, nil
	}
	s.records[key] = memoryEntry{rec: Record{Pending: true}, expires: now.Add(s.ttl)}
	return Record{}, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Pending = false
	s.records[key] = memoryEntry{rec: rec, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Purge drops expired records.
func (s *MemoryStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.records {
		if !now.Before(e.expires) {
			delete(s.records, k)
		}
	}
}
