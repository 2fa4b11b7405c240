package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bunko/bunko/pkg/logging"
)

// DefaultCacheTTL matches the service's own web result cache
const DefaultCacheTTL = 7 * 24 * time.Hour

// Cache stores encoded responses by key
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// DefaultRedisConfig returns local defaults
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "bunko:",
	}
}

// RedisCache implements Cache on Redis
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache connects to Redis and checks the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.Prefix), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "bunko:"
	}
	return &RedisCache{client: client, keyPrefix: prefix}
}

func (c *RedisCache) prefixKey(key string) string {
	return c.keyPrefix + key
}

// Get returns the cached value; a missing key is not an error
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value with a TTL; zero ttl keeps it forever
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// SearchKey hashes the parameters that change a search result
func SearchKey(req Request) string {
	timeout := 0
	if req.TimeoutMS != nil {
		timeout = *req.TimeoutMS
	}
	raw := fmt.Sprintf("%s|%d|%d|%t|%d", req.Query, req.KInternal, req.KWeb, req.IncludeWeb, timeout)
	sum := sha256.Sum256([]byte(raw))
	return "search:" + hex.EncodeToString(sum[:])
}

// DocumentKey is the cache key of a work's text
func DocumentKey(workID string) string {
	return "work:" + workID
}

// CacheObserver is told about cache hits and misses
type CacheObserver interface {
	ObserveCache(kind string, hit bool)
}

// CachedSearcher serves searches and documents from a cache, falling back to
// the wrapped client. Cache failures degrade to misses. Search responses that
// carry per-source errors are not cached.
type CachedSearcher struct {
	searcher Searcher
	fetcher  DocumentFetcher
	cache    Cache
	ttl      time.Duration
	observer CacheObserver
	logger   logging.Logger
}

// CachedOption configures a CachedSearcher
type CachedOption func(*CachedSearcher)

// WithCacheObserver reports hits and misses
func WithCacheObserver(o CacheObserver) CachedOption {
	return func(c *CachedSearcher) {
		c.observer = o
	}
}

// WithCacheLogger sets the logger
func WithCacheLogger(l logging.Logger) CachedOption {
	return func(c *CachedSearcher) {
		c.logger = l
	}
}

// NewCachedSearcher wraps a client with a cache. fetcher may be nil when only
// searches are needed.
func NewCachedSearcher(searcher Searcher, fetcher DocumentFetcher, cache Cache, ttl time.Duration, opts ...CachedOption) *CachedSearcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CachedSearcher{
		searcher: searcher,
		fetcher:  fetcher,
		cache:    cache,
		ttl:      ttl,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search implements Searcher
func (c *CachedSearcher) Search(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := SearchKey(req)
	var cached Response
	if c.load(ctx, "search", key, &cached) {
		return &cached, nil
	}

	resp, err := c.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) == 0 {
		c.store(ctx, key, resp)
	}
	return resp, nil
}

// FetchDocument implements DocumentFetcher
func (c *CachedSearcher) FetchDocument(ctx context.Context, workID string) (*WorkText, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("%w: no document fetcher configured", ErrUpstream)
	}

	key := DocumentKey(workID)
	var cached WorkText
	if c.load(ctx, "document", key, &cached) {
		return &cached, nil
	}

	text, err := c.fetcher.FetchDocument(ctx, workID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, text)
	return text, nil
}

func (c *CachedSearcher) load(ctx context.Context, kind, key string, out interface{}) bool {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithContext(ctx).Warn("cache read failed", logging.String("key", key), logging.Err(err))
	}
	hit := ok && err == nil && json.Unmarshal(data, out) == nil
	if c.observer != nil {
		c.observer.ObserveCache(kind, hit)
	}
	return hit
}

func (c *CachedSearcher) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.WithContext(ctx).Warn("cache write failed", logging.String("key", key), logging.Err(err))
	}
}
