package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSearcher struct {
	mu       sync.Mutex
	searches int
	fetches  int
	resp     Response
	err      error
}

func (c *countingSearcher) Search(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	if c.err != nil {
		return nil, c.err
	}
	resp := c.resp
	return &resp, nil
}

func (c *countingSearcher) FetchDocument(ctx context.Context, workID string) (*WorkText, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
	if c.err != nil {
		return nil, c.err
	}
	return &WorkText{WorkID: workID, Title: "t", Text: "本文"}, nil
}

type recordingObserver struct {
	hits, misses int
}

func (r *recordingObserver) ObserveCache(kind string, hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client, "test:")
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCache(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedSearcher(t *testing.T) {
	t.Run("Second Search Is Served From Cache", func(t *testing.T) {
		cache, mr := newRedisCache(t)
		backend := &countingSearcher{resp: sampleResponse()}
		observer := &recordingObserver{}
		cs := NewCachedSearcher(backend, backend, cache, 0, WithCacheObserver(observer))
		ctx := context.Background()

		first, err := cs.Search(ctx, NewRequest("猫"))
		require.NoError(t, err)
		second, err := cs.Search(ctx, NewRequest("猫"))
		require.NoError(t, err)

		assert.Equal(t, 1, backend.searches)
		assert.Equal(t, first.AozoraResults[0].WorkID, second.AozoraResults[0].WorkID)
		assert.Equal(t, 1, observer.hits)
		assert.Equal(t, 1, observer.misses)
		assert.Equal(t, DefaultCacheTTL, mr.TTL("test:"+SearchKey(NewRequest("猫"))))
	})

	t.Run("Different Parameters Miss", func(t *testing.T) {
		cache, _ := newRedisCache(t)
		backend := &countingSearcher{resp: sampleResponse()}
		cs := NewCachedSearcher(backend, backend, cache, time.Hour)

		req := NewRequest("猫")
		_, _ = cs.Search(context.Background(), req)
		req.IncludeWeb = false
		_, _ = cs.Search(context.Background(), req)
		assert.Equal(t, 2, backend.searches)
	})

	t.Run("Partial Results Are Not Cached", func(t *testing.T) {
		cache, _ := newRedisCache(t)
		resp := sampleResponse()
		resp.Errors = []string{"web search timed out"}
		backend := &countingSearcher{resp: resp}
		cs := NewCachedSearcher(backend, backend, cache, time.Hour)

		_, _ = cs.Search(context.Background(), NewRequest("猫"))
		_, _ = cs.Search(context.Background(), NewRequest("猫"))
		assert.Equal(t, 2, backend.searches)
	})

	t.Run("Errors Pass Through", func(t *testing.T) {
		cache, _ := newRedisCache(t)
		backend := &countingSearcher{err: ErrUpstream}
		cs := NewCachedSearcher(backend, backend, cache, time.Hour)

		_, err := cs.Search(context.Background(), NewRequest("猫"))
		assert.ErrorIs(t, err, ErrUpstream)
		_, err = cs.FetchDocument(context.Background(), "1")
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("Redis Outage Degrades To Miss", func(t *testing.T) {
		cache, mr := newRedisCache(t)
		mr.Close()
		backend := &countingSearcher{resp: sampleResponse()}
		cs := NewCachedSearcher(backend, backend, cache, time.Hour)

		resp, err := cs.Search(context.Background(), NewRequest("猫"))
		require.NoError(t, err)
		assert.Len(t, resp.AozoraResults, 1)
	})

	t.Run("Documents Are Cached", func(t *testing.T) {
		cache, _ := newRedisCache(t)
		backend := &countingSearcher{}
		cs := NewCachedSearcher(backend, backend, cache, time.Hour)

		for i := 0; i < 3; i++ {
			text, err := cs.FetchDocument(context.Background(), "789")
			require.NoError(t, err)
			assert.Equal(t, "本文", text.Text)
		}
		assert.Equal(t, 1, backend.fetches)
	})

	t.Run("No Fetcher", func(t *testing.T) {
		cache, _ := newRedisCache(t)
		cs := NewCachedSearcher(&countingSearcher{}, nil, cache, time.Hour)
		_, err := cs.FetchDocument(context.Background(), "1")
		assert.True(t, errors.Is(err, ErrUpstream))
	})
}

func TestSearchKey(t *testing.T) {
	a := NewRequest("猫")
	b := NewRequest("猫")
	assert.Equal(t, SearchKey(a), SearchKey(b))

	b.TimeoutMS = intPtr(500)
	assert.NotEqual(t, SearchKey(a), SearchKey(b))
}
