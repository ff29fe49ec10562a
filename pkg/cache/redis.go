package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniplan/enrollment-api/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Snapshot stores short-lived JSON blobs, used for job status polling.
type Snapshot struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshot wraps a Redis client for JSON snapshot access.
func NewSnapshot(client *redis.Client, ttl time.Duration) *Snapshot {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Snapshot{client: client, ttl: ttl}
}

// Set marshals and stores a value under key with the configured TTL.
func (s *Snapshot) Set(ctx context.Context, key string, value interface{}) error {
	if s == nil || s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// Get loads a snapshot into dest; the bool reports whether the key existed.
func (s *Snapshot) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return true, nil
}

// Delete drops a snapshot key.
func (s *Snapshot) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}
