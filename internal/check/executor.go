package check

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/page"
)

// Executor runs registered checks against pages. A check that panics or
// returns an error is turned into a single Error result and never stops the
// remaining checks or pages.
type Executor struct {
	registry *Registry
	log      logger.Logger
	metrics  *Metrics
	workers  int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithConcurrency bounds how many pages ExecutePages processes at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		log:      logger.NewNop(),
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the executor draws checks from.
func (e *Executor) Registry() *Registry { return e.registry }

// ExecuteAll runs every registered check against p, in registry order.
func (e *Executor) ExecuteAll(p *page.Content, site *crawlctx.CrawlContext) []Result {
	return e.Execute(p, e.registry.All(), site)
}

// ExecuteByCategory runs the checks of one category against p.
func (e *Executor) ExecuteByCategory(p *page.Content, category Category, site *crawlctx.CrawlContext) []Result {
	return e.Execute(p, e.registry.ByCategory(category), site)
}

// ExecuteSpecific runs the checks whose ids are listed, in registry order.
// Unknown ids are logged and skipped.
func (e *Executor) ExecuteSpecific(p *page.Content, ids []string, site *crawlctx.CrawlContext) []Result {
	return e.Execute(p, e.resolve(Selection{IDs: ids}), site)
}

// Execute runs checks against p sequentially and concatenates their results.
func (e *Executor) Execute(p *page.Content, checks []Check, site *crawlctx.CrawlContext) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, e.run(c, p, site)...)
	}
	e.metrics.observePage()
	return results
}

func (e *Executor) resolve(sel Selection) []Check {
	if sel.IsZero() {
		return e.registry.All()
	}
	checks, unknown := e.registry.Select(sel)
	if len(unknown) > 0 {
		e.log.Warn("Ignoring unknown check ids", logger.Strings("ids", unknown))
	}
	return checks
}

// run executes one check, converting a panic or error into an Error result.
func (e *Executor) run(c Check, p *page.Content, site *crawlctx.CrawlContext) (results []Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.metrics.observePanic(c.ID())
			e.log.Error("Check panicked",
				logger.String("check_id", c.ID()),
				logger.String("url", p.URL),
				logger.Any("panic", r),
			)
			results = []Result{errorResult(c, p, fmt.Sprintf("Check panicked: %v", r))}
		}
		e.metrics.observeCheck(c.ID(), WorstStatus(results), time.Since(start))
	}()

	out, err := c.Execute(p, site)
	if err != nil {
		e.log.Warn("Check failed",
			logger.String("check_id", c.ID()),
			logger.String("url", p.URL),
			logger.Error(err),
		)
		return []Result{errorResult(c, p, fmt.Sprintf("Check failed: %v", err))}
	}
	return out
}

func errorResult(c Check, p *page.Content, message string) Result {
	return Result{
		URL:            p.URL,
		CheckID:        c.ID(),
		CheckName:      c.Name(),
		Category:       c.Category(),
		Status:         StatusError,
		Severity:       c.Severity(),
		Message:        message,
		Recommendation: "Review the check implementation or the page data it received",
		Evidence:       "Execution error",
	}
}

// PageResults groups the results produced for one page.
type PageResults struct {
	URL     string   `json:"url"`
	Results []Result `json:"results"`
}

// ExecutePages runs the selected checks against every page using a bounded
// worker pool. The output has one entry per page in input order. Only context
// cancellation produces an error; pages not started by then are left empty.
func (e *Executor) ExecutePages(ctx context.Context, pages []*page.Content, site *crawlctx.CrawlContext, sel Selection) ([]PageResults, error) {
	checks := e.resolve(sel)
	out := make([]PageResults, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, p := range pages {
		if gctx.Err() != nil {
			break
		}
		out[i].URL = p.URL
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i].Results = e.Execute(p, checks, site)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("execute pages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("execute pages: %w", err)
	}

	e.log.Debug("Executed checks",
		logger.Int("pages", len(pages)),
		logger.Int("checks", len(checks)),
	)
	return out, nil
}

// Flatten concatenates page results in page order.
func Flatten(pages []PageResults) []Result {
	var n int
	for _, p := range pages {
		n += len(p.Results)
	}
	out := make([]Result, 0, n)
	for _, p := range pages {
		out = append(out, p.Results...)
	}
	return out
}
