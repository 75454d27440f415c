package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skillsenselab/interview-analyzer/logger"
)

// RedisConfig configures the Redis-backed cache store.
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
	PoolSize  int    `yaml:"pool_size" mapstructure:"pool_size"`
}

// ApplyDefaults applies default values to the Redis configuration.
func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "semcache"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
}

// RedisStore is a Store backed by Redis so multiple analyzer processes
// share semantic results. Entries are stored as JSON with Redis-side TTL.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
	clock  func() time.Time
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig, log *logger.Logger) (*RedisStore, error) {
	cfg.ApplyDefaults()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("redis cache store connected", logger.Fields(
		"addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.KeyPrefix,
	))

	return &RedisStore{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
		log:    log.WithComponent("cache.redis"),
		clock:  time.Now,
	}, nil
}

func (s *RedisStore) fullKey(key string) string {
	return s.prefix + ":" + key
}

// Get returns the entry for key, or (nil, nil) on a miss. Redis TTL handles
// expiry; the expiry timestamp is still checked defensively so an entry is
// never served past ExpiresAt. Hits increment the hit counter best-effort.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.rdb.Get(ctx, s.fullKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("redis unmarshal %q: %w", key, err)
	}
	if e.Expired(s.clock()) {
		_ = s.rdb.Del(ctx, s.fullKey(key)).Err()
		return nil, nil
	}

	hits, err := s.rdb.HIncrBy(ctx, s.fullKey(key)+":meta", "hits", 1).Result()
	if err == nil {
		e.HitCount = hits
	}
	return &e, nil
}

// Put stores the entry with a Redis TTL derived from its expiry timestamp.
func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis marshal %q: %w", entry.Key, err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.rdb.Set(ctx, s.fullKey(entry.Key), string(data), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", entry.Key, err)
	}
	_ = s.rdb.Expire(ctx, s.fullKey(entry.Key)+":meta", ttl).Err()
	return nil
}

// Delete removes the entry and its hit counter.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.fullKey(key), s.fullKey(key)+":meta").Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error { return s.rdb.Close() }

var _ Store = (*RedisStore)(nil)
