// Package crawler discovers a site breadth-first and turns every fetched URL
// into the page bundle and crawl-graph input the audit consumes.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/page"
	"github.com/spider-crawler/seoaudit/internal/renderer"
	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// ErrNoSeeds is returned when no usable seed URL was given.
var ErrNoSeeds = errors.New("no valid seed URLs")

// Fetcher retrieves a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Robots decides whether a URL may be fetched.
type Robots interface {
	Allowed(ctx context.Context, url string) bool
}

// Renderer renders a URL in a browser.
type Renderer interface {
	Render(ctx context.Context, url string, withAxe bool) (*renderer.Result, error)
}

// Page is one crawled URL.
type Page struct {
	Content        *page.Content
	Depth          int
	DiscoveredFrom string
	InternalLinks  []crawlctx.Link
	ExternalLinks  []crawlctx.Link
	FromCache      bool
}

// PageResult returns the crawl graph input for p.
func (p *Page) PageResult() crawlctx.PageResult {
	return crawlctx.PageResult{
		Record:        p.Content.Record(),
		InternalLinks: p.InternalLinks,
		ExternalLinks: p.ExternalLinks,
	}
}

// Failure is a URL that produced no usable response.
type Failure struct {
	URL   string
	Depth int
	Err   error
}

// Result is the outcome of a crawl.
type Result struct {
	// Normalized first seed
	Root     string
	Pages    []*Page
	Failures []Failure
	// URLs skipped because robots.txt disallows them
	Blocked  []string
	Stats    FrontierStats
	Duration time.Duration
}

// PageResults returns the crawl graph input for every page, in crawl order.
func (r *Result) PageResults() []crawlctx.PageResult {
	out := make([]crawlctx.PageResult, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p.PageResult()
	}
	return out
}

// Contents returns the page bundles in crawl order.
func (r *Result) Contents() []*page.Content {
	out := make([]*page.Content, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p.Content
	}
	return out
}

// Crawler walks a site level by level.
type Crawler struct {
	cfg      config.CrawlConfig
	fetcher  Fetcher
	renderer Renderer
	withAxe  bool
	robots   Robots
	norm     *urlutil.Normalizer
	log      logger.Logger
	metrics  *Metrics
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithRenderer renders every HTML page after fetching. withAxe also runs an
// axe-core scan during the render.
func WithRenderer(r Renderer, withAxe bool) Option {
	return func(c *Crawler) {
		c.renderer = r
		c.withAxe = withAxe
	}
}

// WithRobots skips URLs that r disallows.
func WithRobots(r Robots) Option {
	return func(c *Crawler) { c.robots = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Crawler) { c.log = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// New creates a crawler.
func New(cfg config.CrawlConfig, f Fetcher, opts ...Option) (*Crawler, error) {
	if err := cfg.CompilePatterns(); err != nil {
		return nil, fmt.Errorf("crawler: %w", err)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	c := &Crawler{
		cfg:     cfg,
		fetcher: f,
		norm:    urlutil.NewNormalizer(cfg.IgnoreQueryParams...),
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Normalize returns the crawl graph key for rawURL.
func (c *Crawler) Normalize(rawURL string) (string, error) {
	return c.norm.Normalize(rawURL)
}

// Crawl fetches the seeds and everything reachable from them within the
// configured limits. Pages are returned in BFS order; within a level they
// keep discovery order regardless of which fetch finished first.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) (*Result, error) {
	start := time.Now()
	frontier := NewFrontier(c.cfg.MaxDepth, c.cfg.MaxURLs)

	res := &Result{}
	for _, seed := range seeds {
		if !urlutil.IsHTTP(seed) {
			c.log.Warn("Skipping invalid seed", logger.String("url", seed))
			continue
		}
		u, err := c.norm.Normalize(seed)
		if err != nil {
			c.log.Warn("Skipping invalid seed", logger.String("url", seed), logger.Error(err))
			continue
		}
		if res.Root == "" {
			res.Root = u
		}
		frontier.Push(&URLItem{URL: u})
	}
	if res.Root == "" {
		return nil, ErrNoSeeds
	}

	c.log.Info("Crawl started",
		logger.String("root", res.Root),
		logger.Int("max_depth", c.cfg.MaxDepth),
		logger.Int("max_urls", c.cfg.MaxURLs),
	)

	for level := frontier.NextLevel(); len(level) > 0; level = frontier.NextLevel() {
		pages, err := c.fetchLevel(ctx, res, level)
		if err != nil {
			return nil, err
		}

		for _, p := range pages {
			if p == nil {
				continue
			}
			res.Pages = append(res.Pages, p)
			c.enqueueLinks(frontier, p)
		}
	}

	res.Stats = frontier.Stats()
	res.Duration = time.Since(start)
	c.log.Info("Crawl finished",
		logger.Int("pages", len(res.Pages)),
		logger.Int("failures", len(res.Failures)),
		logger.Int("blocked", len(res.Blocked)),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}

// fetchLevel fetches one BFS level with bounded concurrency and records
// failures and blocked URLs on res. The returned slice is index-aligned with
// level; nil entries were skipped, blocked or failed.
func (c *Crawler) fetchLevel(ctx context.Context, res *Result, level []*URLItem) ([]*Page, error) {
	pages := make([]*Page, len(level))
	failed := make([]error, len(level))
	blocked := make([]bool, len(level))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, item := range level {
		g.Go(func() error {
			if c.robots != nil && !c.robots.Allowed(gctx, item.URL) {
				blocked[i] = true
				return gctx.Err()
			}
			p, err := c.crawlOne(gctx, res.Root, item)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = err
				return nil
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, item := range level {
		switch {
		case blocked[i]:
			c.metrics.observeBlocked()
			c.log.Debug("Blocked by robots.txt", logger.String("url", item.URL))
			res.Blocked = append(res.Blocked, item.URL)
		case failed[i] != nil:
			res.Failures = append(res.Failures, Failure{URL: item.URL, Depth: item.Depth, Err: failed[i]})
		}
	}
	return pages, nil
}

func (c *Crawler) crawlOne(ctx context.Context, root string, item *URLItem) (*Page, error) {
	resp, err := c.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		c.metrics.observeFetchError()
		c.log.Warn("Fetch failed", logger.String("url", item.URL), logger.Error(resp.Error))
		return nil, resp.Error
	}
	c.metrics.observeFetch(resp.StatusCode, resp.FromCache)

	// Error pages stay in the crawl whatever their type so broken links
	// can be reported against them.
	if resp.IsSuccess() && !resp.IsHTML() {
		c.log.Debug("Skipping non-HTML response",
			logger.String("url", item.URL),
			logger.String("content_type", resp.ContentType),
		)
		return nil, nil
	}

	parser, err := page.NewParser(resp.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", resp.FinalURL, err)
	}
	parser.AllowSubdomains = c.cfg.IncludeSubdomains

	content, err := resp.Content(parser)
	if err != nil {
		return nil, err
	}

	if c.renderer != nil && resp.IsSuccess() {
		c.render(ctx, content)
	}

	p := &Page{
		Content:        content,
		Depth:          item.Depth,
		DiscoveredFrom: item.DiscoveredFrom,
		FromCache:      resp.FromCache,
	}
	c.splitLinks(root, p)
	return p, nil
}

func (c *Crawler) render(ctx context.Context, content *page.Content) {
	res, err := c.renderer.Render(ctx, content.URL, c.withAxe)
	if err == nil {
		err = res.Apply(content)
	}
	c.metrics.observeRender(err == nil)
	if err != nil {
		c.log.Warn("Render failed, keeping static HTML", logger.String("url", content.URL), logger.Error(err))
	}
}

// splitLinks classifies the page's links against the site root's host
// rather than the page's, so a redirect off-site cannot widen the crawl.
func (c *Crawler) splitLinks(root string, p *Page) {
	for _, l := range p.Content.Extract().Links {
		link := crawlctx.Link{URL: l.URL, AnchorText: l.Text, Nofollow: l.Nofollow}
		if !urlutil.IsHTTP(l.URL) || !urlutil.SameSite(root, l.URL, c.cfg.IncludeSubdomains) {
			p.ExternalLinks = append(p.ExternalLinks, link)
			continue
		}
		key, err := c.norm.Normalize(l.URL)
		if err != nil {
			continue
		}
		link.URL = key
		p.InternalLinks = append(p.InternalLinks, link)
	}
}

func (c *Crawler) enqueueLinks(f *Frontier, p *Page) {
	if c.cfg.RespectNofollow && page.HasDirective(p.Content.Extract().MetaRobots, "nofollow") {
		return
	}
	for _, l := range p.InternalLinks {
		if f.Full() {
			return
		}
		if c.cfg.RespectNofollow && l.Nofollow {
			continue
		}
		if !c.cfg.ShouldCrawl(l.URL) {
			continue
		}
		f.Push(&URLItem{URL: l.URL, DiscoveredFrom: p.Content.URL, Depth: p.Depth + 1})
	}
}
