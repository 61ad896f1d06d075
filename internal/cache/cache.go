// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides a small TTL cache for dashboard responses, backed
// by process memory or, when configured, Redis.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores serialized responses under string keys with a TTL.
type Cache interface {
	// Get returns the cached bytes for key, or false when absent/expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for the configured TTL.
	Set(ctx context.Context, key string, value []byte)
	// Flush drops every entry. Called after any case mutation.
	Flush(ctx context.Context)
	// Close releases backend resources.
	Close() error
}

// Config selects and tunes the cache backend.
type Config struct {
	RedisURL string        // Empty selects the in-memory backend
	Prefix   string        // Redis key prefix
	TTL      time.Duration // Entry lifetime
}

// New builds a cache from cfg. When Redis is configured but unreachable it
// falls back to memory so the dashboard stays available.
func New(cfg Config) Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err == nil {
			client := redis.NewClient(opts)
			if pingErr := client.Ping(context.Background()).Err(); pingErr == nil {
				return &redisCache{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
			}
			_ = client.Close()
		}
		slog.Warn("redis cache unavailable, falling back to memory", "url", cfg.RedisURL)
	}

	return newMemoryCache(cfg.TTL)
}

// memoryCache is a mutex-guarded map with lazy expiry.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	done    chan struct{}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	c := &memoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Flush(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error {
	close(c.done)
	return nil
}

// janitor evicts expired entries periodically so the map cannot grow
// unbounded between flushes.
func (c *memoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// redisCache stores entries in Redis under a shared prefix.
type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		slog.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (c *redisCache) Flush(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("redis cache scan failed", "error", err)
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			slog.Warn("redis cache flush failed", "error", err)
		}
	}
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
