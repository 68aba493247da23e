package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespaces are logical partitions, not security boundaries. They exist to
// scope pattern deletes and keep subsystems out of each other's key space.
const (
	NamespaceDefault   = "app"
	NamespaceTasks     = "tasks"
	NamespaceStats     = "stats"
	NamespaceAuth      = "auth"
	NamespaceRateLimit = "rate_limit"
	NamespaceMetrics   = "metrics"
	NamespaceOverdue   = "overdue"
)

// ErrMiss indicates the key was absent (or unreadable, on the fail-safe read
// path). Callers must fall back to the system of record.
var ErrMiss = errors.New("cache: miss")

// SetMode controls conditional writes.
type SetMode int

const (
	// SetAlways overwrites unconditionally.
	SetAlways SetMode = iota
	// SetIfAbsent writes only when the key does not exist (SET NX).
	SetIfAbsent
	// SetIfPresent writes only when the key already exists (SET XX).
	SetIfPresent
)

// Config holds cache behavior settings.
type Config struct {
	DefaultTTL       time.Duration
	DefaultNamespace string
}

// Stats is a snapshot of the cache's diagnostic counters. These are
// observability data, never correctness-bearing.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
}

// Health reports the result of a liveness probe.
type Health struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Cache is the single point of access to the shared key/value store. It
// handles namespace prefixing, JSON serialization, and failure direction:
// reads prefer a miss over an error, writes surface the error to the
// immediate caller who decides whether it is fatal.
type Cache struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Cache on top of an existing Redis client.
func New(client *redis.Client, cfg Config, logger *slog.Logger) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.DefaultNamespace == "" {
		cfg.DefaultNamespace = NamespaceDefault
	}
	return &Cache{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (c *Cache) key(namespace, key string) string {
	if namespace == "" {
		namespace = c.cfg.DefaultNamespace
	}
	return namespace + ":" + key
}

// Set writes value (JSON-encoded) under namespace:key with the given TTL.
// ttl <= 0 falls back to the configured default.
func (c *Cache) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.countError()
		return fmt.Errorf("cache: marshal %s: %w", c.key(namespace, key), err)
	}

	if err := c.client.Set(ctx, c.key(namespace, key), data, ttl).Err(); err != nil {
		c.countError()
		return fmt.Errorf("cache: set %s: %w", c.key(namespace, key), err)
	}

	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()
	return nil
}

// Get decodes the value at namespace:key into dest. Returns ErrMiss when the
// key is absent. Store errors also surface as ErrMiss: on the read path the
// fail-safe direction is a miss and a fresh read from the system of record.
func (c *Cache) Get(ctx context.Context, namespace, key string, dest any) error {
	data, err := c.client.Get(ctx, c.key(namespace, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.countError()
			c.logger.Warn("cache read failed, treating as miss",
				slog.String("key", c.key(namespace, key)),
				slog.Any("error", err))
		}
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return ErrMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.countError()
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return ErrMiss
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	return nil
}

// Delete removes one key and returns the number of keys removed (0 or 1).
func (c *Cache) Delete(ctx context.Context, namespace, key string) (int64, error) {
	n, err := c.client.Del(ctx, c.key(namespace, key)).Result()
	if err != nil {
		c.countError()
		return 0, fmt.Errorf("cache: delete %s: %w", c.key(namespace, key), err)
	}
	c.mu.Lock()
	c.stats.Deletes += n
	c.mu.Unlock()
	return n, nil
}

// DeletePattern removes every key in the namespace matching the glob pattern
// and returns the count removed. Used exclusively for invalidation; pattern
// shapes are internal contract between the pipeline, dispatcher, and sweeps.
func (c *Cache) DeletePattern(ctx context.Context, namespace, pattern string) (int64, error) {
	match := c.key(namespace, pattern)

	var deleted int64
	var batch []string
	iter := c.client.Scan(ctx, 0, match, 200).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				c.countError()
				return deleted, fmt.Errorf("cache: delete pattern %s: %w", match, err)
			}
			deleted += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.countError()
		return deleted, fmt.Errorf("cache: scan pattern %s: %w", match, err)
	}
	if len(batch) > 0 {
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			c.countError()
			return deleted, fmt.Errorf("cache: delete pattern %s: %w", match, err)
		}
		deleted += n
	}

	c.mu.Lock()
	c.stats.Deletes += deleted
	c.mu.Unlock()
	return deleted, nil
}

// Exists reports whether namespace:key is present.
func (c *Cache) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(namespace, key)).Result()
	if err != nil {
		c.countError()
		return false, fmt.Errorf("cache: exists %s: %w", c.key(namespace, key), err)
	}
	return n > 0, nil
}

// Expire sets a TTL on an existing key without touching its value. Returns
// false if the key is absent.
func (c *Cache) Expire(ctx context.Context, namespace, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.Expire(ctx, c.key(namespace, key), ttl).Result()
	if err != nil {
		c.countError()
		return false, fmt.Errorf("cache: expire %s: %w", c.key(namespace, key), err)
	}
	return ok, nil
}

// TTL returns the remaining lifetime of a key. A key with no expiry or an
// absent key reports a negative duration, per the store's convention.
func (c *Cache) TTL(ctx context.Context, namespace, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, c.key(namespace, key)).Result()
	if err != nil {
		c.countError()
		return 0, fmt.Errorf("cache: ttl %s: %w", c.key(namespace, key), err)
	}
	return d, nil
}

// Increment atomically adds amount to the counter at namespace:key, creating
// it at amount if absent. Atomicity is the store's, not ours: this is the
// sole building block for rate limiting and failed-attempt counting and must
// never be emulated with read-modify-write.
func (c *Cache) Increment(ctx context.Context, namespace, key string, amount int64) (int64, error) {
	n, err := c.client.IncrBy(ctx, c.key(namespace, key), amount).Result()
	if err != nil {
		c.countError()
		return 0, fmt.Errorf("cache: increment %s: %w", c.key(namespace, key), err)
	}
	return n, nil
}

// SetConditional writes value only when the mode's condition holds. Returns
// whether the write happened. SetIfAbsent gives idempotent set-once semantics.
func (c *Cache) SetConditional(ctx context.Context, namespace, key string, value any, ttl time.Duration, mode SetMode) (bool, error) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.countError()
		return false, fmt.Errorf("cache: marshal %s: %w", c.key(namespace, key), err)
	}

	var ok bool
	switch mode {
	case SetIfAbsent:
		ok, err = c.client.SetNX(ctx, c.key(namespace, key), data, ttl).Result()
	case SetIfPresent:
		ok, err = c.client.SetXX(ctx, c.key(namespace, key), data, ttl).Result()
	default:
		err = c.client.Set(ctx, c.key(namespace, key), data, ttl).Err()
		ok = err == nil
	}
	if err != nil {
		c.countError()
		return false, fmt.Errorf("cache: conditional set %s: %w", c.key(namespace, key), err)
	}

	if ok {
		c.mu.Lock()
		c.stats.Sets++
		c.mu.Unlock()
	}
	return ok, nil
}

// ScanKeys returns the keys in the namespace matching the glob pattern, with
// the namespace prefix stripped. Bounded scans only; callers own pagination
// semantics (sweeps pass narrow patterns).
func (c *Cache) ScanKeys(ctx context.Context, namespace, pattern string) ([]string, error) {
	if namespace == "" {
		namespace = c.cfg.DefaultNamespace
	}
	prefix := namespace + ":"
	match := prefix + pattern

	var keys []string
	iter := c.client.Scan(ctx, 0, match, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		c.countError()
		return nil, fmt.Errorf("cache: scan %s: %w", match, err)
	}
	return keys, nil
}

// HealthCheck pings the store and reports liveness plus round-trip latency.
// No side effects.
func (c *Cache) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	latency := time.Since(start)
	if err != nil {
		return Health{Healthy: false, Latency: latency}
	}
	return Health{Healthy: true, Latency: latency}
}

// Stats returns a snapshot of the diagnostic counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the diagnostic counters.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}

func (c *Cache) countError() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}
