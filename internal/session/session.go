package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"newsdesk/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Store keeps the identity behind each session id.
type Store interface {
	Get(ctx context.Context, id string) (model.Identity, error)
	Put(ctx context.Context, id string, who model.Identity) error
	Evict(ctx context.Context, id string) error
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

type memEntry struct {
	who     model.Identity
	expires time.Time
}

// MemoryStore is a process-local Store. Entries expire after TTL; zero TTL
// keeps them until evicted.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memEntry{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, id)
		return model.Identity{}, ErrNotFound
	}
	return e.who, nil
}

func (m *MemoryStore) Put(_ context.Context, id string, who model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{who: who}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[id] = e
	return nil
}

func (m *MemoryStore) Evict(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// RedisStore keeps sessions in Redis so every server node sees them.
type RedisStore struct {
	rdb      *redis.Client
	instance string
	ttl      time.Duration
}

func NewRedisStore(rdb *redis.Client, instance string, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("session: redis client is required")
	}
	if instance == "" {
		return nil, errors.New("session: instance name cannot be empty")
	}
	return &RedisStore{rdb: rdb, instance: instance, ttl: ttl}, nil
}

func (r *RedisStore) key(id string) string {
	return fmt.Sprintf("newsdesk:%s:session:%s", r.instance, id)
}

func (r *RedisStore) Get(ctx context.Context, id string) (model.Identity, error) {
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to read session: %w", err)
	}
	var who model.Identity
	if err := json.Unmarshal(b, &who); err != nil {
		return model.Identity{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return who, nil
}

func (r *RedisStore) Put(ctx context.Context, id string, who model.Identity) error {
	b, err := json.Marshal(who)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(id), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (r *RedisStore) Evict(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to evict session: %w", err)
	}
	return nil
}
