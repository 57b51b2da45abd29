package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig contains Redis store configuration
type RedisConfig struct {
	URL            string
	KeyPrefix      string
	MaxConnections int
	MinIdleConns   int
	DialTimeout    time.Duration
}

// RedisStore is a Redis-backed TTLStore. Expiry is enforced by the server,
// so reads past TTL naturally behave as ErrNotFound and no reaper is needed.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore creates a Redis-backed store and verifies connectivity
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	store := &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis vault store initialized",
		zap.String("redis_url", maskRedisURL(cfg.URL)),
		zap.String("key_prefix", cfg.KeyPrefix),
		zap.Int("max_connections", cfg.MaxConnections))

	return store, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.namespaced(key), value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.namespaced(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = s.namespaced(key)
	}
	return s.client.Del(ctx, namespaced...).Err()
}

// Keys scans for live keys with the given prefix
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.namespaced(prefix) + "*"

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.nsPrefix()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) namespaced(key string) string {
	return s.nsPrefix() + key
}

func (s *RedisStore) nsPrefix() string {
	if s.keyPrefix == "" {
		return ""
	}
	return s.keyPrefix + ":"
}

// maskRedisURL masks credentials in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
