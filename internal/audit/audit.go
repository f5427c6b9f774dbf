// Package audit wires crawling, check execution, persistence and reporting
// into one run.
package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/checks"
	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/crawler"
	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/pagespeed"
	"github.com/spider-crawler/seoaudit/internal/renderer"
	"github.com/spider-crawler/seoaudit/internal/report"
	"github.com/spider-crawler/seoaudit/internal/robots"
	"github.com/spider-crawler/seoaudit/internal/sitemap"
	"github.com/spider-crawler/seoaudit/internal/storage"
	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// ErrNoURLs is returned when a run is started without any URL.
var ErrNoURLs = errors.New("no URLs to audit")

// Mode tells how pages were gathered.
type Mode string

const (
	// ModeCrawl discovers pages from the seeds and runs site-wide checks.
	ModeCrawl Mode = "crawl"
	// ModeAnalyze checks the given URLs only, without a site context.
	ModeAnalyze Mode = "analyze"
)

// Summary is the outcome of one run.
type Summary struct {
	AuditID  string
	Mode     Mode
	RootURL  string
	Pages    []storage.Page
	Failures []crawler.Failure
	Blocked  []string
	// Sitemap URLs added to the seeds
	Sitemap []string
	Results []check.Result
	Stats   check.Stats
	// Nil in ModeAnalyze
	Site     *crawlctx.CrawlContext
	Files    []string
	Duration time.Duration
}

// Auditor runs audits with a fixed configuration.
type Auditor struct {
	cfg       *config.AuditConfig
	log       logger.Logger
	registry  *check.Registry
	executor  *check.Executor
	fetcher   *fetcher.Fetcher
	renderer  *renderer.Renderer
	pagespeed *pagespeed.Client
	robots    *robots.Checker
	sitemaps  *sitemap.Reader
	db        *storage.Database
	selection check.Selection
	metrics   *crawler.Metrics

	// set by options before the collaborators are built
	registerer prometheus.Registerer
	transport  *http.Transport
	noReports  bool
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Auditor) { a.log = l }
}

// WithRegisterer enables Prometheus metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Auditor) { a.registerer = reg }
}

// WithTransport sets the HTTP transport of the fetcher and the PageSpeed
// Insights client.
func WithTransport(t *http.Transport) Option {
	return func(a *Auditor) { a.transport = t }
}

// WithoutReports skips writing report files.
func WithoutReports() Option {
	return func(a *Auditor) { a.noReports = true }
}

// New validates cfg and builds every collaborator it enables. Close releases
// them.
func New(cfg *config.AuditConfig, opts ...Option) (*Auditor, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Auditor{cfg: cfg, log: logger.NewNop()}
	for _, opt := range opts {
		opt(a)
	}

	sel, err := cfg.Checks.Selection()
	if err != nil {
		return nil, err
	}
	a.selection = sel

	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Auditor) build() error {
	var err error
	if a.cfg.Storage.Path != "" {
		a.db, err = storage.NewDatabase(a.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithLogger(a.log),
		fetcher.WithCache(a.cfg.Storage.CacheSize, a.cfg.Storage.CacheTTL),
	}
	if a.db != nil {
		fetchOpts = append(fetchOpts, fetcher.WithStore(a.db))
	}
	if a.transport != nil {
		fetchOpts = append(fetchOpts, fetcher.WithTransport(a.transport))
	}
	a.fetcher, err = fetcher.New(a.cfg.Crawl, fetchOpts...)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	if a.cfg.Crawl.RespectRobots || a.cfg.Crawl.UseSitemaps {
		a.robots = robots.NewChecker(a.fetcher, a.cfg.Crawl.UserAgent, a.log)
	}
	if a.cfg.Crawl.UseSitemaps {
		a.sitemaps = sitemap.NewReader(a.fetcher, a.log)
	}

	if a.cfg.Render.Enabled {
		a.renderer, err = renderer.New(a.cfg.Render, a.cfg.Crawl.UserAgent, a.cfg.Crawl.Concurrency, a.log)
		if err != nil {
			return fmt.Errorf("start renderer: %w", err)
		}
	}

	checkOpts := checks.Options{
		AxeTimeout:        a.cfg.Render.Axe.Timeout,
		LighthouseTimeout: a.cfg.Lighthouse.Timeout,
	}
	if a.renderer != nil && a.cfg.Render.Axe.Enabled {
		checkOpts.AxeScanner = a.renderer
	}
	if a.cfg.Lighthouse.Enabled {
		psOpts := []pagespeed.Option{pagespeed.WithLogger(a.log)}
		if a.transport != nil {
			psOpts = append(psOpts, pagespeed.WithTransport(a.transport))
		}
		a.pagespeed, err = pagespeed.New(a.cfg.Lighthouse, psOpts...)
		if err != nil {
			return fmt.Errorf("create pagespeed client: %w", err)
		}
		checkOpts.Lighthouse = a.pagespeed
	}
	a.registry, err = checks.NewRegistry(checkOpts)
	if err != nil {
		return err
	}

	execOpts := []check.Option{
		check.WithLogger(a.log),
		check.WithConcurrency(a.cfg.Execution.Workers),
	}
	if a.registerer != nil {
		execOpts = append(execOpts, check.WithMetrics(check.NewMetrics(a.registerer)))
		a.metrics = crawler.NewMetrics(a.registerer)
	}
	a.executor = check.NewExecutor(a.registry, execOpts...)
	return nil
}

// Registry returns the registered checks.
func (a *Auditor) Registry() *check.Registry { return a.registry }

// Database returns the audit database, or nil when storage is disabled.
func (a *Auditor) Database() *storage.Database { return a.db }

// Close releases the browser, the HTTP client and the database.
func (a *Auditor) Close() error {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Run crawls from seeds (the configured seeds when empty), runs every
// selected check with the site context and stores and exports the results.
func (a *Auditor) Run(ctx context.Context, seeds ...string) (*Summary, error) {
	if len(seeds) == 0 {
		seeds = a.cfg.Crawl.Seeds
	}
	return a.run(ctx, ModeCrawl, a.cfg.Crawl, seeds)
}

// AnalyzeURLs checks each URL on its own. Links are not followed and
// site-wide checks report that they need a crawl.
func (a *Auditor) AnalyzeURLs(ctx context.Context, urls ...string) (*Summary, error) {
	cfg := a.cfg.Crawl
	cfg.MaxDepth = 0
	cfg.MaxURLs = 0
	return a.run(ctx, ModeAnalyze, cfg, urls)
}

func (a *Auditor) run(ctx context.Context, mode Mode, crawlCfg config.CrawlConfig, urls []string) (*Summary, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	start := time.Now()
	sum := &Summary{Mode: mode, RootURL: urls[0]}

	var stored *storage.Audit
	if a.db != nil {
		var err error
		stored, err = a.db.CreateAudit(ctx, urls[0], a.cfg)
		if err != nil {
			return nil, err
		}
		sum.AuditID = stored.ID
	}
	log := a.log.With(logger.String("mode", string(mode)), logger.String("audit_id", sum.AuditID))

	err := a.execute(ctx, log, crawlCfg, urls, sum)
	if stored != nil {
		status := storage.AuditCompleted
		if err != nil {
			status = storage.AuditFailed
		}
		// Record the outcome even when ctx was cancelled.
		if cerr := a.db.CompleteAudit(context.WithoutCancel(ctx), stored.ID, status, len(sum.Pages), sum.Stats); cerr != nil {
			log.Error("Failed to complete audit record", logger.Error(cerr))
		}
	}
	if err != nil {
		return nil, err
	}

	if !a.noReports && len(a.cfg.Report.Formats) > 0 {
		r := report.New(sum.AuditID, sum.RootURL, sum.Results, sum.Pages).WithSite(sum.Site)
		files, err := report.WriteFiles(r, a.cfg.Report.OutputDir, a.cfg.Report.BaseName, a.cfg.Report.Formats)
		sum.Files = files
		if err != nil {
			return sum, fmt.Errorf("write reports: %w", err)
		}
	}

	sum.Duration = time.Since(start)
	log.Info("Audit finished",
		logger.Int("pages", len(sum.Pages)),
		logger.Int("results", sum.Stats.Total),
		logger.Float64("pass_rate", sum.Stats.PassRate),
		logger.Strings("files", sum.Files),
		logger.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (a *Auditor) execute(ctx context.Context, log logger.Logger, crawlCfg config.CrawlConfig, urls []string, sum *Summary) error {
	crawlOpts := []crawler.Option{crawler.WithLogger(log), crawler.WithMetrics(a.metrics)}
	// A nil *Renderer must not become a non-nil interface.
	if a.renderer != nil {
		crawlOpts = append(crawlOpts, crawler.WithRenderer(a.renderer, a.cfg.Render.Axe.Enabled))
	}
	// Explicitly requested URLs are analyzed whatever robots.txt says.
	if a.cfg.Crawl.RespectRobots && sum.Mode == ModeCrawl {
		crawlOpts = append(crawlOpts, crawler.WithRobots(a.robots))
	}
	c, err := crawler.New(crawlCfg, a.fetcher, crawlOpts...)
	if err != nil {
		return err
	}

	seeds := urls
	if a.sitemaps != nil && sum.Mode == ModeCrawl {
		sum.Sitemap, err = a.sitemapURLs(ctx, crawlCfg, urls[0])
		if err != nil {
			return err
		}
		seeds = append(slices.Clone(urls), sum.Sitemap...)
	}

	crawled, err := c.Crawl(ctx, seeds)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	sum.RootURL = crawled.Root
	sum.Failures = crawled.Failures
	sum.Blocked = crawled.Blocked

	if sum.Mode == ModeCrawl {
		sum.Site = crawlctx.Build(crawled.Root, crawled.PageResults())
		sum.Pages = sitePages(sum.Site)
	} else {
		sum.Pages = standalonePages(crawled.Pages)
	}

	pageResults, err := a.executor.ExecutePages(ctx, crawled.Contents(), sum.Site, a.selection)
	if err != nil {
		return err
	}
	sum.Results = check.Flatten(pageResults)
	sum.Stats = check.Summarize(sum.Results)

	if a.db == nil {
		return nil
	}
	if err := a.db.SavePages(ctx, sum.AuditID, sum.Pages); err != nil {
		return err
	}
	if sum.Site != nil {
		if err := a.db.SaveLinks(ctx, sum.AuditID, sum.Site.Edges()); err != nil {
			return err
		}
	}
	return a.db.SaveResults(ctx, sum.AuditID, sum.Results)
}

// sitemapURLs returns the same-site, crawlable URLs listed in the sitemaps
// that robots.txt declares, or in /sitemap.xml when it declares none.
func (a *Auditor) sitemapURLs(ctx context.Context, crawlCfg config.CrawlConfig, root string) ([]string, error) {
	locations := a.robots.Sitemaps(ctx, root)
	if len(locations) == 0 {
		def, err := urlutil.Resolve(root, "/sitemap.xml")
		if err != nil {
			return nil, nil
		}
		locations = []string{def}
	}

	entries, err := a.sitemaps.Collect(ctx, locations)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !urlutil.IsHTTP(e.Loc) || !urlutil.SameSite(root, e.Loc, crawlCfg.IncludeSubdomains) {
			continue
		}
		if !crawlCfg.ShouldCrawl(e.Loc) {
			continue
		}
		out = append(out, e.Loc)
	}
	return out, nil
}

// sitePages pairs every known page with its graph metrics, sorted by URL.
func sitePages(site *crawlctx.CrawlContext) []storage.Page {
	metrics := site.AllMetrics()
	pages := make([]storage.Page, 0, len(metrics))
	for _, m := range metrics {
		rec, ok := site.Page(m.URL)
		if !ok {
			continue
		}
		pages = append(pages, storage.NewPage(rec, m))
	}
	return pages
}

// standalonePages records pages checked without a crawl graph.
func standalonePages(crawled []*crawler.Page) []storage.Page {
	pages := make([]storage.Page, len(crawled))
	for i, p := range crawled {
		pages[i] = storage.NewPage(p.Content.Record(), crawlctx.PageMetrics{
			URL:         p.Content.URL,
			Depth:       crawlctx.Unreachable,
			OutLinks:    len(p.InternalLinks),
			ExternalOut: len(p.ExternalLinks),
		})
	}
	return pages
}
