package check

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

// funcCheck adapts a function to Check.
type funcCheck struct {
	Base
	fn func(p *page.Content, site *crawlctx.CrawlContext) ([]Result, error)
}

func (c funcCheck) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]Result, error) {
	return c.fn(p, site)
}

func passing(id string, category Category) Check {
	b := NewBase(id, "Check "+id, category, SeverityLow)
	return funcCheck{Base: b, fn: func(p *page.Content, _ *crawlctx.CrawlContext) ([]Result, error) {
		return b.One(p, StatusPass, "ok", "", ""), nil
	}}
}

func siteWide(id string) Check {
	b := NewBase(id, "Site "+id, CategoryLinks, SeverityHigh).WithSiteContext()
	return funcCheck{Base: b, fn: func(p *page.Content, site *crawlctx.CrawlContext) ([]Result, error) {
		if site == nil {
			return b.ContextRequired(p, "count inbound links"), nil
		}
		n := site.InboundCount(p.URL)
		return b.One(p, StatusPass, fmt.Sprintf("%d inbound", n), "", ""), nil
	}}
}

func mustContent(t *testing.T, url, html string) *page.Content {
	t.Helper()
	c, err := page.NewContent(url, 200, nil, html)
	require.NoError(t, err)
	return c
}

func TestBaseIdentity(t *testing.T) {
	b := NewBase("title_presence", "Page Title Presence", CategoryMetaTags, SeverityCritical)
	assert.Equal(t, "title_presence", b.ID())
	assert.Equal(t, "Page Title Presence", b.Name())
	assert.Equal(t, CategoryMetaTags, b.Category())
	assert.Equal(t, SeverityCritical, b.Severity())
	assert.False(t, b.RequiresSiteContext())
	assert.True(t, b.WithSiteContext().RequiresSiteContext())
	assert.False(t, b.RequiresSiteContext(), "WithSiteContext returns a copy")
}

func TestContextRequired(t *testing.T) {
	p := mustContent(t, "https://example.com/", "<p>x</p>")
	c := siteWide("inbound")

	results, err := c.Execute(p, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusInfo, results[0].Status)
	assert.Equal(t, "Requires site-wide crawl to count inbound links", results[0].Message)
	assert.Equal(t, "inbound", results[0].CheckID)
	assert.Equal(t, SeverityHigh, results[0].Severity)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("core-web-vitals")
	require.NoError(t, err)
	assert.Equal(t, CategoryCoreWebVitals, c)

	c, err = ParseCategory("international_seo")
	require.NoError(t, err)
	assert.Equal(t, CategoryInternationalSEO, c)

	_, err = ParseCategory("Gossip")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		base Base
	}{
		{"empty id", NewBase("", "Name", CategoryLinks, SeverityLow)},
		{"empty name", NewBase("id", " ", CategoryLinks, SeverityLow)},
		{"bad category", NewBase("id", "Name", "Gossip", SeverityLow)},
		{"bad severity", NewBase("id", "Name", CategoryLinks, "Apocalyptic")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(funcCheck{Base: tt.base})
			assert.ErrorIs(t, err, ErrInvalidCheck)
		})
	}
	assert.ErrorIs(t, Validate(nil), ErrInvalidCheck)
	assert.NoError(t, Validate(passing("ok", CategoryLinks)))
}

func TestResultRow(t *testing.T) {
	r := Result{
		URL: "u", CheckID: "id", CheckName: "n", Category: CategoryImages,
		Status: StatusFail, Severity: SeverityMedium, Message: "m", Recommendation: "r", Evidence: "e",
	}
	assert.Len(t, r.Row(), len(Columns()))
	assert.Equal(t, []string{"u", "id", "n", "Images", "Fail", "Medium", "m", "r", "e"}, r.Row())
	assert.Equal(t, SeverityLow, r.WithSeverity(SeverityLow).Severity)
	assert.Equal(t, SeverityMedium, r.Severity)
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{URL: "a", Category: CategoryLinks, Severity: SeverityHigh, Status: StatusPass},
		{URL: "a", Category: CategoryLinks, Severity: SeverityHigh, Status: StatusFail},
		{URL: "b", Category: CategoryImages, Severity: SeverityLow, Status: StatusPass},
		{URL: "b", Category: CategoryImages, Severity: SeverityLow, Status: StatusWarning},
		{URL: "b", Category: CategoryImages, Severity: SeverityLow, Status: StatusInfo},
		{URL: "c", Category: CategoryContent, Severity: SeverityLow, Status: StatusError},
	}

	s := Summarize(results)
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Pass)
	assert.Equal(t, 1, s.Fail)
	assert.Equal(t, 1, s.Warning)
	assert.Equal(t, 1, s.Info)
	assert.Equal(t, 1, s.Error)
	assert.Equal(t, 3, s.Pages)
	assert.InDelta(t, 33.333, s.PassRate, 0.01)
	assert.Equal(t, StatusCounts{Total: 2, Pass: 1, Fail: 1}, s.ByCategory[CategoryLinks])
	assert.Equal(t, 4, s.BySeverity[SeverityLow].Total)

	// pure reduction
	assert.Equal(t, s, Summarize(results))

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 0.0, empty.PassRate)
}

func TestWorstStatus(t *testing.T) {
	assert.Equal(t, Status("None"), WorstStatus(nil))
	assert.Equal(t, StatusFail, WorstStatus([]Result{{Status: StatusPass}, {Status: StatusFail}, {Status: StatusInfo}}))
	assert.Equal(t, StatusError, WorstStatus([]Result{{Status: StatusError}, {Status: StatusWarning}}))
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrDuplicateCheck, ErrInvalidCheck))
}
