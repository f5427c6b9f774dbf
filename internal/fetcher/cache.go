package fetcher

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store persists fetched responses between runs.
type Store interface {
	// CachedResponse returns nil without error when url is not cached.
	CachedResponse(ctx context.Context, url string) (*Response, error)
	CacheResponse(ctx context.Context, resp *Response) error
}

// responseCache is an in-memory LRU in front of an optional Store.
type responseCache struct {
	mem   *lru.Cache[string, *Response]
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func newResponseCache(size int, ttl time.Duration, store Store) (*responseCache, error) {
	c := &responseCache{store: store, ttl: ttl, now: time.Now}
	if size > 0 {
		mem, err := lru.New[string, *Response](size)
		if err != nil {
			return nil, fmt.Errorf("response cache: %w", err)
		}
		c.mem = mem
	}
	return c, nil
}

func (c *responseCache) fresh(resp *Response) bool {
	return resp != nil && c.now().Sub(resp.FetchedAt) < c.ttl
}

// get returns a fresh cached response. Store errors are returned so the
// caller can log them; they never prevent a fetch.
func (c *responseCache) get(ctx context.Context, url string) (*Response, error) {
	if c.ttl <= 0 {
		return nil, nil
	}
	if c.mem != nil {
		if resp, ok := c.mem.Get(url); ok {
			if c.fresh(resp) {
				return resp, nil
			}
			c.mem.Remove(url)
		}
	}
	if c.store == nil {
		return nil, nil
	}
	resp, err := c.store.CachedResponse(ctx, url)
	if err != nil || !c.fresh(resp) {
		return nil, err
	}
	if c.mem != nil {
		c.mem.Add(url, resp)
	}
	return resp, nil
}

func (c *responseCache) put(ctx context.Context, resp *Response) error {
	if c.ttl <= 0 || resp.Error != nil {
		return nil
	}
	if c.mem != nil {
		c.mem.Add(resp.RequestURL, resp)
	}
	if c.store == nil {
		return nil
	}
	return c.store.CacheResponse(ctx, resp)
}
