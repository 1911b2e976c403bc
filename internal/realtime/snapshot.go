package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/clickstream-go/internal/clickstream"
)

// SnapshotCache stores the last broadcast payload per topic so that a
// freshly connected subscriber can be served the current picture without
// waiting for the next click.
type SnapshotCache interface {
	Set(ctx context.Context, topic string, payload []byte) error
	Get(ctx context.Context, topic string) ([]byte, error)
}

// RedisSnapshotCache keeps topic snapshots in Redis with a TTL, shared
// across server and consumer processes.
type RedisSnapshotCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a Redis-backed snapshot cache.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client: client,
		prefix: "realtime:snapshot:",
		ttl:    ttl,
	}
}

// Set stores the snapshot for a topic.
func (c *RedisSnapshotCache) Set(ctx context.Context, topic string, payload []byte) error {
	if err := c.client.Set(ctx, c.prefix+topic, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: caching snapshot: %w", clickstream.ErrStorage, err)
	}

	return nil
}

// Get returns the cached snapshot for a topic, or ErrNotFound when none
// exists or it has expired.
func (c *RedisSnapshotCache) Get(ctx context.Context, topic string) ([]byte, error) {
	payload, err := c.client.Get(ctx, c.prefix+topic).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, clickstream.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w: reading snapshot: %w", clickstream.ErrStorage, err)
	}

	return payload, nil
}

// MemorySnapshotCache is an in-memory SnapshotCache for tests and
// single-process setups.
type MemorySnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemorySnapshotCache creates an empty in-memory snapshot cache.
func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{snapshots: make(map[string][]byte)}
}

// Set stores the snapshot for a topic.
func (c *MemorySnapshotCache) Set(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshots[topic] = append([]byte(nil), payload...)

	return nil
}

// Get returns the cached snapshot for a topic.
func (c *MemorySnapshotCache) Get(_ context.Context, topic string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	payload, ok := c.snapshots[topic]
	if !ok {
		return nil, clickstream.ErrNotFound
	}

	return append([]byte(nil), payload...), nil
}
