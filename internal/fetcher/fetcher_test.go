package fetcher

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/page"
	"github.com/spider-crawler/seoaudit/internal/testutil"
)

func newFetcher(t *testing.T, mutate func(*config.CrawlConfig), opts ...Option) *Fetcher {
	t.Helper()
	cfg := config.DefaultConfig().Crawl
	cfg.RequestsPerSecond = 0
	cfg.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestFetchCapturesResponse(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/", testutil.Page{
		Body:    "<html><head><title>Home</title></head></html>",
		Headers: http.Header{"X-Frame-Options": {"DENY"}, "Set-Cookie": {"a=1; Secure", "b=2; HttpOnly"}},
	})

	resp, err := newFetcher(t, nil).Fetch(context.Background(), srv.At("/"))
	require.NoError(t, err)
	require.NoError(t, resp.Error)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, "DENY", resp.Headers.Get("X-Frame-Options"))
	assert.Len(t, resp.Headers.Values("Set-Cookie"), 2)
	assert.Contains(t, string(resp.Body), "<title>Home</title>")
	assert.True(t, resp.IsSuccess())
	assert.Empty(t, resp.Redirects)
	assert.Positive(t, resp.ResponseTime)
}

func TestFetchDecodesGzipAndKeepsEncoding(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/", testutil.Page{Body: "<p>compressed body</p>", Gzip: true})

	resp, err := newFetcher(t, nil).Fetch(context.Background(), srv.At("/"))
	require.NoError(t, err)
	require.NoError(t, resp.Error)

	assert.Equal(t, "gzip", resp.Headers.Get("Content-Encoding"))
	assert.Equal(t, "<p>compressed body</p>", string(resp.Body))
}

func TestFetchFollowsRedirects(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Redirect("/a", "/b")
	srv.RedirectWith("/b", "/c", http.StatusFound)
	srv.HTML("/c", "<p>done</p>")

	resp, err := newFetcher(t, nil).Fetch(context.Background(), srv.At("/a"))
	require.NoError(t, err)
	require.NoError(t, resp.Error)

	assert.Equal(t, srv.At("/c"), resp.FinalURL)
	assert.Equal(t, srv.At("/a"), resp.RequestURL)
	assert.Equal(t, []string{srv.At("/a"), srv.At("/b")}, resp.RedirectURLs())
	assert.Equal(t, http.StatusMovedPermanently, resp.Redirects[0].StatusCode)
	assert.Equal(t, http.StatusFound, resp.Redirects[1].StatusCode)
}

func TestFetchRedirectLimit(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Redirect("/loop", "/loop")

	resp, err := newFetcher(t, func(c *config.CrawlConfig) { c.MaxRedirects = 3 }).
		Fetch(context.Background(), srv.At("/loop"))
	require.NoError(t, err)
	require.Error(t, resp.Error)
	assert.Contains(t, resp.Error.Error(), "max redirects (3) exceeded")
	assert.Len(t, resp.Redirects, 4)
}

func TestFetchErrorStatusIsNotAnError(t *testing.T) {
	srv := testutil.NewServer(t)

	resp, err := newFetcher(t, nil).Fetch(context.Background(), srv.At("/missing"))
	require.NoError(t, err)
	require.NoError(t, resp.Error)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchTruncatesLargeBodies(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.HTML("/big", strings.Repeat("x", 2048))

	resp, err := newFetcher(t, func(c *config.CrawlConfig) { c.MaxResponseSize = 1024 }).
		Fetch(context.Background(), srv.At("/big"))
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.Len(t, resp.Body, 1024)
}

func TestFetchTimeout(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.HTML("/slow", "<p>slow</p>")
	srv.Delay("/slow", 2*time.Second)

	resp, err := newFetcher(t, func(c *config.CrawlConfig) { c.Timeout = time.Second }).
		Fetch(context.Background(), srv.At("/slow"))
	require.NoError(t, err)
	require.Error(t, resp.Error)
	assert.True(t, resp.Retryable)
}

func TestFetchCancelledContext(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.HTML("/", "<p>x</p>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newFetcher(t, nil).Fetch(ctx, srv.At("/"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.HTML("/", "<p>x</p>")

	f := newFetcher(t, func(c *config.CrawlConfig) {
		c.Headers = map[string]string{"X-Audit": "yes"}
	})
	_, err := f.Fetch(context.Background(), srv.At("/"))
	require.NoError(t, err)

	got := srv.LastRequest("/")
	assert.Equal(t, "yes", got.Get("X-Audit"))
	assert.Equal(t, config.DefaultConfig().Crawl.UserAgent, got.Get("User-Agent"))
	assert.Contains(t, got.Get("Accept-Encoding"), "gzip")
}

type memStore struct {
	mu    sync.Mutex
	items map[string]*Response
	reads int
}

func (m *memStore) CachedResponse(_ context.Context, url string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.items[url], nil
}

func (m *memStore) CacheResponse(_ context.Context, resp *Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[resp.RequestURL] = resp
	return nil
}

func TestFetchCache(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.HTML("/", "<p>cached</p>")
	store := &memStore{items: map[string]*Response{}}

	f := newFetcher(t, nil, WithCache(8, time.Hour), WithStore(store))
	first, err := f.Fetch(context.Background(), srv.At("/"))
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(context.Background(), srv.At("/"))
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, srv.Hits("/"))
	assert.Contains(t, store.items, srv.At("/"))

	// a fresh fetcher sharing the store skips the network too
	other := newFetcher(t, nil, WithCache(8, time.Hour), WithStore(store))
	third, err := other.Fetch(context.Background(), srv.At("/"))
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, 1, srv.Hits("/"))
}

func TestFetchCacheDisabled(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.HTML("/", "<p>x</p>")

	f := newFetcher(t, nil, WithCache(8, 0))
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.At("/"))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, srv.Hits("/"))
}

func TestResponseContent(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Redirect("/old", "/new/")
	srv.HTML("/new/", `<html><head><title>New</title></head><body><a href="child">c</a></body></html>`)

	resp, err := newFetcher(t, nil).Fetch(context.Background(), srv.At("/old"))
	require.NoError(t, err)

	p, err := page.NewParser(resp.FinalURL)
	require.NoError(t, err)
	c, err := resp.Content(p)
	require.NoError(t, err)

	assert.Equal(t, srv.At("/old"), c.URL)
	assert.Equal(t, srv.At("/new/"), c.FinalURL)
	assert.Equal(t, []string{srv.At("/old")}, c.Redirects)
	assert.Equal(t, "New", c.Extract().Title)
	require.Len(t, c.Extract().Links, 1)
	assert.Equal(t, srv.At("/new/child"), c.Extract().Links[0].URL)
	assert.Equal(t, resp.ResponseTime, c.StaticLoadTime)
}

func TestHostRateLimiter(t *testing.T) {
	l := NewHostRateLimiter(20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 25; i++ {
		require.NoError(t, l.Wait(ctx, "example.com"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	// another host has its own bucket
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "other.org"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	assert.NoError(t, NewHostRateLimiter(0).Wait(ctx, "example.com"))
}
