package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = fmt.Errorf("cache: key not found")

// Stats summarizes cache occupancy.
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

// Cache is the response-cache contract. It is a latency shield, never a
// correctness boundary; callers must behave identically on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Fingerprint derives the 128-bit cache key for a chat response from
// the user, the normalized query text, and the catalog version tag.
// Bumping the tag invalidates every cached answer.
func Fingerprint(userID, query, versionTag string) string {
	h := fnv.New128a()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeQuery(query)))
	h.Write([]byte{0})
	h.Write([]byte(versionTag))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuery lowercases and collapses whitespace so trivially
// different phrasings share a fingerprint.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// cullFraction is the share of entries dropped when the cache is full.
const cullFraction = 0.1

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache is a bounded in-process cache. When an insert would
// exceed maxSize it drops the oldest-created 10% of entries (an
// age-based cull, cheaper than strict LRU and good enough for a
// latency shield). Expired entries are evicted lazily on read.
type MemoryCache struct {
	maxSize int

	mu   sync.Mutex
	data map[string]memoryEntry
}

// NewMemoryCache creates a bounded in-memory cache.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		maxSize: maxSize,
		data:    make(map[string]memoryEntry),
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}

	if time.Now().After(entry.expiresAt) {
		delete(m.data, key)
		return nil, ErrNotFound
	}

	return entry.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxSize {
		m.cull()
	}

	now := time.Now()
	m.data[key] = memoryEntry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	return nil
}

// cull removes the oldest-created 10% of entries (at least one).
// Caller holds the lock.
func (m *MemoryCache) cull() {
	type aged struct {
		key       string
		createdAt time.Time
	}

	entries := make([]aged, 0, len(m.data))
	for key, entry := range m.data {
		entries = append(entries, aged{key: key, createdAt: entry.createdAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].createdAt.Equal(entries[j].createdAt) {
			return entries[i].key < entries[j].key
		}
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	drop := int(float64(m.maxSize) * cullFraction)
	if drop < 1 {
		drop = 1
	}
	if drop > len(entries) {
		drop = len(entries)
	}
	for _, entry := range entries[:drop] {
		delete(m.data, entry.key)
	}
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]memoryEntry)
	return nil
}

func (m *MemoryCache) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Total: len(m.data)}
	now := time.Now()
	for _, entry := range m.data {
		if now.After(entry.expiresAt) {
			stats.Expired++
		} else {
			stats.Active++
		}
	}
	return stats, nil
}

// Len reports the current entry count, expired entries included.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// RedisCache backs the response cache with Redis for deployments that
// want cache warmth across restarts. Redis handles TTL expiry itself.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr string, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func (r *RedisCache) Stats(ctx context.Context) (Stats, error) {
	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, err
	}
	// Redis evicts expired keys itself, so everything counted is live.
	return Stats{Total: int(size), Active: int(size)}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// GetJSON reads a key and unmarshals it into dest.
func GetJSON(ctx context.Context, cache Cache, key string, dest interface{}) error {
	data, err := cache.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, cache Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return cache.Set(ctx, key, data, ttl)
}
