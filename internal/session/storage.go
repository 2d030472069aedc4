package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when no credentials are stored.
var ErrNoSession = errors.New("no session")

// Credentials is what a successful login leaves behind.
type Credentials struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (c Credentials) Empty() bool {
	return c.Token == ""
}

// Expired reports whether the token carries an expiry that has passed.
func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type Storage interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// MemoryStorage keeps the session for the lifetime of the process.
type MemoryStorage struct {
	mu    sync.RWMutex
	creds Credentials
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(_ context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds.Empty() {
		return Credentials{}, ErrNoSession
	}
	return m.creds, nil
}

func (m *MemoryStorage) Save(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	m.creds = Credentials{}
	m.mu.Unlock()
	return nil
}

// RedisStorage keeps the session in redis under one key that expires with
// the token.
type RedisStorage struct {
	client     *redis.Client
	key        string
	defaultTTL time.Duration
	now        func() time.Time
}

func NewRedisStorage(client *redis.Client, prefix, key string, defaultTTL time.Duration) *RedisStorage {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &RedisStorage{
		client:     client,
		key:        sessionKey(prefix, key),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (r *RedisStorage) Load(ctx context.Context) (Credentials, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("redis get failed: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("unmarshal session failed: %w", err)
	}
	if creds.Empty() {
		return Credentials{}, ErrNoSession
	}
	return creds, nil
}

func (r *RedisStorage) Save(ctx context.Context, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	ttl := r.defaultTTL
	if !creds.ExpiresAt.IsZero() {
		ttl = creds.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return r.Clear(ctx)
		}
	}
	if err := r.client.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(prefix, key string) string {
	return fmt.Sprintf("%ssession:%s", prefix, key)
}
