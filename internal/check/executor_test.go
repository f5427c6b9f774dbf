package check

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/page"
)

// linkRatio divides by the number of links on the page, so it panics with an
// integer divide by zero on a page without links.
func linkRatio() Check {
	b := NewBase("link_ratio", "Link Ratio", CategoryLinks, SeverityMedium)
	return funcCheck{Base: b, fn: func(p *page.Content, _ *crawlctx.CrawlContext) ([]Result, error) {
		words := p.Extract().WordCount
		links := len(p.Extract().Links)
		return b.One(p, StatusPass, fmt.Sprintf("%d words per link", words/links), "", ""), nil
	}}
}

func failing() Check {
	b := NewBase("failing", "Always Errors", CategoryContent, SeverityHigh)
	return funcCheck{Base: b, fn: func(*page.Content, *crawlctx.CrawlContext) ([]Result, error) {
		return nil, errors.New("upstream unavailable")
	}}
}

func multi() Check {
	b := NewBase("multi", "Multi Finding", CategoryImages, SeverityLow)
	return funcCheck{Base: b, fn: func(p *page.Content, _ *crawlctx.CrawlContext) ([]Result, error) {
		return []Result{
			b.Result(p, StatusFail, "first", "", ""),
			b.Result(p, StatusWarning, "second", "", ""),
		}, nil
	}}
}

func empty() Check {
	b := NewBase("empty", "Nothing Applicable", CategoryImages, SeverityLow)
	return funcCheck{Base: b, fn: func(*page.Content, *crawlctx.CrawlContext) ([]Result, error) {
		return nil, nil
	}}
}

func newTestRegistry(t *testing.T, checks ...Check) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, c := range checks {
		require.NoError(t, r.Register(c))
	}
	return r
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.CheckID
	}
	return out
}

func TestExecuteAllIsolatesPanics(t *testing.T) {
	reg := newTestRegistry(t, passing("first", CategoryMetaTags), linkRatio(), passing("last", CategoryMetaTags))
	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	e := NewExecutor(reg, WithMetrics(metrics))

	p := mustContent(t, "https://example.com/", "<p>no links here</p>")
	results := e.ExecuteAll(p, nil)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "link_ratio", "last"}, ids(results))
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusPass, results[2].Status)

	broken := results[1]
	assert.Equal(t, StatusError, broken.Status)
	assert.Equal(t, "Link Ratio", broken.CheckName)
	assert.Equal(t, CategoryLinks, broken.Category)
	assert.Equal(t, SeverityMedium, broken.Severity)
	assert.Equal(t, "https://example.com/", broken.URL)
	assert.Contains(t, broken.Message, "divide by zero")

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.CheckPanics.WithLabelValues("link_ratio")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ChecksExecuted.WithLabelValues("link_ratio", "Error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ChecksExecuted.WithLabelValues("first", "Pass")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.PagesAudited))

	// the same check works once the page has links
	withLinks := mustContent(t, "https://example.com/", `<p>four words of text</p><a href="/x">x</a>`)
	results = e.ExecuteAll(withLinks, nil)
	require.Len(t, results, 3)
	assert.Equal(t, StatusPass, results[1].Status)
}

func TestExecuteAllConvertsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := newTestRegistry(t, failing(), multi(), empty())
	e := NewExecutor(reg, WithLogger(logger.FromZap(zap.New(core))))

	p := mustContent(t, "https://example.com/", "<p>x</p>")
	results := e.ExecuteAll(p, nil)

	require.Len(t, results, 3)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Equal(t, "Check failed: upstream unavailable", results[0].Message)
	assert.Equal(t, SeverityHigh, results[0].Severity)
	assert.Equal(t, []string{"failing", "multi", "multi"}, ids(results))

	require.Equal(t, 1, logs.FilterMessage("Check failed").Len())
}

func TestExecuteSiteContext(t *testing.T) {
	reg := newTestRegistry(t, siteWide("inbound"))
	e := NewExecutor(reg)
	p := mustContent(t, "https://example.com/a", "<p>x</p>")

	results := e.ExecuteAll(p, nil)
	require.Len(t, results, 1)
	assert.Equal(t, StatusInfo, results[0].Status)

	site := crawlctx.Build("https://example.com/", []crawlctx.PageResult{
		{Record: crawlctx.PageRecord{URL: "https://example.com/"}, InternalLinks: []crawlctx.Link{{URL: "https://example.com/a"}}},
		{Record: p.Record()},
	})
	results = e.ExecuteAll(p, site)
	require.Len(t, results, 1)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, "1 inbound", results[0].Message)
}

func TestExecuteByCategoryAndSpecific(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := newTestRegistry(t,
		passing("m1", CategoryMetaTags),
		passing("i1", CategoryImages),
		passing("m2", CategoryMetaTags),
	)
	e := NewExecutor(reg, WithLogger(logger.FromZap(zap.New(core))))
	p := mustContent(t, "https://example.com/", "<p>x</p>")

	assert.Equal(t, []string{"m1", "m2"}, ids(e.ExecuteByCategory(p, CategoryMetaTags, nil)))
	assert.Empty(t, e.ExecuteByCategory(p, CategorySecurity, nil))

	got := e.ExecuteSpecific(p, []string{"m2", "ghost", "i1"}, nil)
	assert.Equal(t, []string{"i1", "m2"}, ids(got))
	require.Equal(t, 1, logs.FilterMessage("Ignoring unknown check ids").Len())

	pages, err := e.ExecutePages(context.Background(), []*page.Content{p}, nil, Selection{Exclude: []string{"i1"}})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, []string{"m1", "m2"}, ids(pages[0].Results))
}

func TestExecutePagesKeepsPageOrder(t *testing.T) {
	reg := newTestRegistry(t, passing("p", CategoryMetaTags), linkRatio())
	e := NewExecutor(reg, WithConcurrency(4))

	var pages []*page.Content
	for i := 0; i < 25; i++ {
		html := "<p>text</p>"
		if i%2 == 0 {
			html += `<a href="/x">x</a>`
		}
		pages = append(pages, mustContent(t, fmt.Sprintf("https://example.com/%d", i), html))
	}

	out, err := e.ExecutePages(context.Background(), pages, nil, Selection{})
	require.NoError(t, err)
	require.Len(t, out, len(pages))

	for i, pr := range out {
		assert.Equal(t, pages[i].URL, pr.URL)
		require.Len(t, pr.Results, 2)
		for _, r := range pr.Results {
			assert.Equal(t, pages[i].URL, r.URL)
		}
		if i%2 == 0 {
			assert.Equal(t, StatusPass, pr.Results[1].Status)
		} else {
			assert.Equal(t, StatusError, pr.Results[1].Status)
		}
	}

	flat := Flatten(out)
	assert.Len(t, flat, 50)
	assert.Equal(t, pages[0].URL, flat[0].URL)
	assert.Equal(t, pages[24].URL, flat[49].URL)
}

func TestExecutePagesSelection(t *testing.T) {
	reg := newTestRegistry(t, passing("m1", CategoryMetaTags), passing("i1", CategoryImages))
	e := NewExecutor(reg)
	p := mustContent(t, "https://example.com/", "<p>x</p>")

	out, err := e.ExecutePages(context.Background(), []*page.Content{p}, nil, Selection{Categories: []Category{CategoryImages}})
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, ids(out[0].Results))
}

func TestExecutePagesCancelled(t *testing.T) {
	reg := newTestRegistry(t, passing("p", CategoryMetaTags))
	e := NewExecutor(reg, WithConcurrency(1))
	p := mustContent(t, "https://example.com/", "<p>x</p>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExecutePages(ctx, []*page.Content{p, p}, nil, Selection{})
	require.ErrorIs(t, err, context.Canceled)
}
