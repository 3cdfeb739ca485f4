package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore reads assets kept as JSON strings under "<prefix>Logos/<clientId>"
// and "<prefix>Images/<recordId>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Logos returns the logo prefixes of a client.
func (s *RedisStore) Logos(ctx context.Context, clientID string) (*Logos, error) {
	var logos Logos
	found, err := s.get(ctx, "Logos/"+clientID, &logos)
	if err != nil || !found {
		return nil, err
	}
	return &logos, nil
}

// Images returns the signatures and pictures of a record.
func (s *RedisStore) Images(ctx context.Context, recordID string) (*Images, error) {
	var images Images
	found, err := s.get(ctx, "Images/"+recordID, &images)
	if err != nil || !found {
		return nil, err
	}
	return &images, nil
}

func (s *RedisStore) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
