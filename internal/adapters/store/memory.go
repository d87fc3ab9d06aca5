package store

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"sync"
	"time"
)

var (
	errWrongType = errors.New("operation against a key holding the wrong kind of value")
	errNotInt    = errors.New("value is not an integer")
)

type memEntry struct {
	value   string
	hash    map[string]string
	expires time.Time // zero means no expiry
}

// MemoryStore is a process-local core.SessionStore with lazy TTL eviction.
// Suitable for a single instance and for tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*memEntry
	// Now is the clock used for expiry; tests replace it to simulate eviction.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*memEntry),
		Now:  time.Now,
	}
}

// lookup returns the live entry for key, evicting it if expired. Caller holds mu.
func (s *MemoryStore) lookup(key string) (*memEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !s.Now().Before(e.expires) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.Now().Add(ttl)
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &memEntry{value: value, expires: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	if e.hash != nil {
		return "", false, unavailable("get", errWrongType)
	}
	return e.value, true, nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("incr", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		e = &memEntry{value: "0"}
		s.data[key] = e
	}
	if e.hash != nil {
		return 0, unavailable("incr", errWrongType)
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, unavailable("incr", errNotInt)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key, field, value string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("hset", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		e = &memEntry{hash: make(map[string]string)}
		s.data[key] = e
	}
	if e.hash == nil {
		return unavailable("hset", errWrongType)
	}
	e.hash[field] = value
	return nil
}

func (s *MemoryStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("hget", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	if e.hash == nil {
		return "", false, unavailable("hget", errWrongType)
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("hgetall", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return map[string]string{}, nil
	}
	if e.hash == nil {
		return nil, unavailable("hgetall", errWrongType)
	}
	return maps.Clone(e.hash), nil
}

func (s *MemoryStore) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("expire", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.deadline(ttl)
	for _, k := range keys {
		if e, ok := s.lookup(k); ok {
			e.expires = until
		}
	}
	return nil
}
