package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/page"
	"github.com/spider-crawler/seoaudit/internal/renderer"
	fixtures "github.com/spider-crawler/seoaudit/internal/testutil"
)

func crawlConfig(mutate func(*config.CrawlConfig)) config.CrawlConfig {
	cfg := config.DefaultConfig().Crawl
	cfg.RequestsPerSecond = 0
	cfg.Concurrency = 4
	cfg.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func newCrawler(t *testing.T, cfg config.CrawlConfig, opts ...Option) *Crawler {
	t.Helper()
	f, err := fetcher.New(cfg)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	c, err := New(cfg, f, opts...)
	require.NoError(t, err)
	return c
}

func urls(res *Result) []string {
	out := make([]string, len(res.Pages))
	for i, p := range res.Pages {
		out[i] = p.Content.URL
	}
	return out
}

func TestCrawlAuditSite(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.BuildAuditSite()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := newCrawler(t, crawlConfig(nil), WithMetrics(metrics))

	res, err := c.Crawl(context.Background(), []string{srv.At("/"), srv.At("/orphan"), srv.At("/blog/copy")})
	require.NoError(t, err)

	assert.Equal(t, srv.At("/"), res.Root)
	assert.Equal(t, []string{
		srv.At("/"), srv.At("/orphan"), srv.At("/blog/copy"),
		srv.At("/about"), srv.At("/products"), srv.At("/blog"), srv.At("/missing"),
		srv.At("/products/1"), srv.At("/products/2"), srv.At("/blog/post"),
		srv.At("/products/1/specs"), srv.At("/products/2/specs"),
	}, urls(res))
	assert.Empty(t, res.Failures)

	for _, p := range res.Pages {
		assert.Equal(t, 1, srv.Hits(p.Content.URL[len(srv.URL()):]), p.Content.URL)
	}

	home := res.Pages[0]
	assert.Equal(t, 0, home.Depth)
	assert.Len(t, home.InternalLinks, 4)
	require.Len(t, home.ExternalLinks, 1)
	assert.Equal(t, "https://external.example.org/", home.ExternalLinks[0].URL)

	missing := res.Pages[6]
	assert.Equal(t, 404, missing.Content.StatusCode)
	assert.Equal(t, 1, missing.Depth)
	assert.Equal(t, srv.At("/"), missing.DiscoveredFrom)

	assert.Equal(t, map[int]int{0: 3, 1: 4, 2: 3, 3: 2}, res.Stats.DepthCounts)
	assert.InDelta(t, 11, testutil.ToFloat64(metrics.PagesFetched.WithLabelValues("2xx")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PagesFetched.WithLabelValues("4xx")), 0)

	site := crawlctx.Build(res.Root, res.PageResults())
	assert.Equal(t, 0, site.PageDepth(srv.At("/")))
	assert.Equal(t, 3, site.PageDepth(srv.At("/products/2/specs")))
	assert.True(t, site.IsOrphan(srv.At("/orphan")))
	assert.True(t, site.IsOrphan(srv.At("/blog/copy")))
	assert.False(t, site.IsOrphan(srv.At("/about")))
	assert.Equal(t, -1, site.PageDepth(srv.At("/orphan")))
	assert.Equal(t, 1, site.ExternalLinkCount(srv.At("/")))

	post := res.Pages[9].Content.Extract().Fingerprint
	assert.Equal(t, []string{srv.At("/blog/copy"), srv.At("/blog/post")}, site.SimilarContentPages(post))
}

func TestCrawlLimits(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.BuildAuditSite()

	t.Run("depth", func(t *testing.T) {
		c := newCrawler(t, crawlConfig(func(cfg *config.CrawlConfig) { cfg.MaxDepth = 1 }))
		res, err := c.Crawl(context.Background(), []string{srv.At("/")})
		require.NoError(t, err)
		assert.Len(t, res.Pages, 5)
		for _, p := range res.Pages {
			assert.LessOrEqual(t, p.Depth, 1)
		}
	})

	t.Run("seeds only", func(t *testing.T) {
		c := newCrawler(t, crawlConfig(func(cfg *config.CrawlConfig) { cfg.MaxDepth = 0 }))
		res, err := c.Crawl(context.Background(), []string{srv.At("/")})
		require.NoError(t, err)
		assert.Equal(t, []string{srv.At("/")}, urls(res))
	})

	t.Run("max urls", func(t *testing.T) {
		c := newCrawler(t, crawlConfig(func(cfg *config.CrawlConfig) { cfg.MaxURLs = 3 }))
		res, err := c.Crawl(context.Background(), []string{srv.At("/")})
		require.NoError(t, err)
		assert.Equal(t, []string{srv.At("/"), srv.At("/about"), srv.At("/products")}, urls(res))
		// enqueueing stops once the frontier is full
		assert.Equal(t, 3, res.Stats.TotalAdded)
		assert.Zero(t, res.Stats.Rejected)
	})

	t.Run("exclude pattern", func(t *testing.T) {
		c := newCrawler(t, crawlConfig(func(cfg *config.CrawlConfig) { cfg.ExcludePatterns = []string{"/products"} }))
		res, err := c.Crawl(context.Background(), []string{srv.At("/")})
		require.NoError(t, err)
		for _, u := range urls(res) {
			assert.NotContains(t, u, "/products")
		}
		// links to excluded pages are still edges in the graph
		assert.Contains(t, res.Pages[0].InternalLinks, crawlctx.Link{URL: srv.At("/products"), AnchorText: "Products"})
	})
}

func TestCrawlNofollow(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.HTML("/", fixtures.NewHTMLBuilder().
		Title("Home").
		LinkWithRel("/private", "Private", "nofollow", "").
		Link("/public", "Public").
		Build())
	srv.HTML("/private", "<p>private</p>")
	srv.HTML("/public", "<p>public</p>")

	res, err := newCrawler(t, crawlConfig(nil)).Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)
	assert.Len(t, res.Pages, 3)

	polite := newCrawler(t, crawlConfig(func(cfg *config.CrawlConfig) { cfg.RespectNofollow = true }))
	res, err = polite.Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.At("/"), srv.At("/public")}, urls(res))
	assert.True(t, res.Pages[0].InternalLinks[0].Nofollow)
}

func TestCrawlSkipsNonHTML(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.HTML("/", fixtures.NewHTMLBuilder().Link("/feed", "Feed").Link("/gone", "Gone").Build())
	srv.Handle("/feed", fixtures.Page{Body: "{}", ContentType: "application/json"})
	srv.Handle("/gone", fixtures.Page{Body: "gone", ContentType: "text/plain", StatusCode: 410})

	res, err := newCrawler(t, crawlConfig(nil)).Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.At("/"), srv.At("/gone")}, urls(res))
	assert.Equal(t, 410, res.Pages[1].Content.StatusCode)
}

func TestCrawlRecordsFailures(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.HTML("/", fixtures.NewHTMLBuilder().Link("/loop", "Loop").Build())
	srv.Redirect("/loop", "/loop")

	c := newCrawler(t, crawlConfig(func(cfg *config.CrawlConfig) { cfg.MaxRedirects = 2 }))
	res, err := c.Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)
	assert.Len(t, res.Pages, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, srv.At("/loop"), res.Failures[0].URL)
	assert.Equal(t, 1, res.Failures[0].Depth)
}

func TestCrawlNoSeeds(t *testing.T) {
	c := newCrawler(t, crawlConfig(nil))
	_, err := c.Crawl(context.Background(), []string{"mailto:someone@example.com", "not a url"})
	assert.ErrorIs(t, err, ErrNoSeeds)
}

func TestCrawlCancelled(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.BuildAuditSite()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newCrawler(t, crawlConfig(nil)).Crawl(ctx, []string{srv.At("/")})
	assert.ErrorIs(t, err, context.Canceled)
}

type denyPrefix string

func (d denyPrefix) Allowed(_ context.Context, url string) bool {
	return !strings.HasPrefix(url, string(d))
}

func TestCrawlRespectsRobots(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.BuildAuditSite()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := newCrawler(t, crawlConfig(nil), WithRobots(denyPrefix(srv.At("/products"))), WithMetrics(metrics))
	res, err := c.Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)

	for _, u := range urls(res) {
		assert.NotContains(t, u, "/products")
	}
	assert.Equal(t, []string{srv.At("/products")}, res.Blocked)
	assert.Equal(t, 0, srv.Hits("/products"))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Blocked), 0)
	// the blocked page is still a link target
	assert.Contains(t, res.Pages[0].InternalLinks, crawlctx.Link{URL: srv.At("/products"), AnchorText: "Products"})
}

type stubRenderer struct {
	err error
}

func (s stubRenderer) Render(_ context.Context, url string, withAxe bool) (*renderer.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &renderer.Result{
		HTML:     `<html><head><title>Rendered</title></head><body><a href="/spa">SPA</a></body></html>`,
		LoadTime: 900 * time.Millisecond,
		Vitals:   map[string]float64{page.VitalLCP: 1200},
	}
	if withAxe {
		res.Axe = &page.AxeReport{Passes: 3}
	}
	return res, nil
}

func TestCrawlWithRenderer(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.HTML("/", "<html><head><title>Shell</title></head><body></body></html>")
	srv.HTML("/spa", "<p>spa</p>")

	c := newCrawler(t, crawlConfig(nil), WithRenderer(stubRenderer{}, true))
	res, err := c.Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)

	require.Len(t, res.Pages, 2)
	home := res.Pages[0].Content
	assert.True(t, home.IsRendered())
	assert.Equal(t, "Rendered", home.Extract().Title)
	assert.Equal(t, 3, home.Axe.Passes)
	assert.Equal(t, srv.At("/spa"), res.Pages[1].Content.URL)
}

func TestCrawlRenderFailureKeepsStaticHTML(t *testing.T) {
	srv := fixtures.NewServer(t)
	srv.HTML("/", "<html><head><title>Static</title></head></html>")

	c := newCrawler(t, crawlConfig(nil), WithRenderer(stubRenderer{err: errors.New("chromium crashed")}, false))
	res, err := c.Crawl(context.Background(), []string{srv.At("/")})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.False(t, res.Pages[0].Content.IsRendered())
	assert.Equal(t, "Static", res.Pages[0].Content.Extract().Title)
}

func TestFrontier(t *testing.T) {
	f := NewFrontier(2, 3)
	assert.True(t, f.Push(&URLItem{URL: "a"}))
	assert.False(t, f.Push(&URLItem{URL: "a"}))
	assert.False(t, f.Push(&URLItem{URL: "deep", Depth: 3}))
	assert.True(t, f.Push(&URLItem{URL: "b", Depth: 1}))

	level := f.NextLevel()
	require.Len(t, level, 2)
	assert.Equal(t, "a", level[0].URL)

	assert.True(t, f.Push(&URLItem{URL: "c", Depth: 2}))
	assert.True(t, f.Full())
	assert.False(t, f.Push(&URLItem{URL: "d", Depth: 2}))

	stats := f.Stats()
	assert.Equal(t, 3, stats.TotalAdded)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 2, stats.Rejected)
	assert.Equal(t, 3, stats.Queued)

	assert.Len(t, f.NextLevel(), 1)
	assert.Empty(t, f.NextLevel())
	assert.Equal(t, 3, f.Stats().Visited)
}
