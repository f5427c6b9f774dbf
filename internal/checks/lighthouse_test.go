package checks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/pagespeed"
)

type fakeLighthouse struct {
	report *pagespeed.Report
	err    error
	block  bool
	calls  atomic.Int32
}

func (f *fakeLighthouse) Run(ctx context.Context, _ string) (*pagespeed.Report, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.report, f.err
}

func scoreOf(v float64) *float64 { return &v }

var sampleLighthouse = &pagespeed.Report{
	Categories: map[string]float64{"performance": 0.62, "seo": 0.9, "accessibility": 0.884},
	Audits: []pagespeed.Audit{
		{ID: "document-title", Title: "Document has a title", Score: scoreOf(1)},
		{ID: "largest-contentful-paint", Title: "Largest Contentful Paint", DisplayValue: "4.1 s", Score: scoreOf(0.31)},
		{ID: "render-blocking-resources", Title: "Eliminate render-blocking resources", Score: scoreOf(0.85)},
		{ID: "unused-javascript", Title: "Reduce unused JavaScript", DisplayValue: "Potential savings of 120 KiB", Score: scoreOf(0.7)},
		{ID: "diagnostics", Title: "Diagnostics"},
	},
}

func TestLighthouseNotConfigured(t *testing.T) {
	results := execute(t, newLighthouseAudit(Options{}), newPage(t, pageURL, "<p>x</p>", nil), nil)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusInfo, results[0].Status)
	assert.Equal(t, "Lighthouse is not configured", results[0].Message)
}

func TestLighthouseAudit(t *testing.T) {
	runner := &fakeLighthouse{report: sampleLighthouse}
	c := newLighthouseAudit(Options{Lighthouse: runner, LighthouseTimeout: time.Second})

	results := execute(t, c, newPage(t, pageURL, "<p>x</p>", nil), nil)
	require.Len(t, results, 4)
	assert.Equal(t, int32(1), runner.calls.Load())

	assert.Equal(t, check.StatusFail, results[0].Status)
	assert.Equal(t, "Lighthouse found 2 failing audits and 1 warning", results[0].Message)
	assert.Equal(t, "performance 62, accessibility 88, seo 90", results[0].Evidence)
	assert.Equal(t, check.SeverityHigh, results[0].Severity)

	assert.Equal(t, "Largest Contentful Paint (largest-contentful-paint)", results[1].Message)
	assert.Equal(t, check.StatusFail, results[1].Status)
	assert.Equal(t, check.SeverityCritical, results[1].Severity)
	assert.Equal(t, "Improve Largest Contentful Paint (currently 4.1 s)", results[1].Recommendation)
	assert.Equal(t, "score 31%", results[1].Evidence)

	assert.Equal(t, check.StatusFail, results[2].Status)
	assert.Equal(t, check.SeverityHigh, results[2].Severity)
	assert.Equal(t, "Reduce unused JavaScript (unused-javascript)", results[2].Message)

	assert.Equal(t, check.StatusWarning, results[3].Status)
	assert.Equal(t, check.SeverityMedium, results[3].Severity)
	assert.Equal(t, "Address: Eliminate render-blocking resources", results[3].Recommendation)
}

func TestLighthouseAllPassed(t *testing.T) {
	runner := &fakeLighthouse{report: &pagespeed.Report{
		Audits: []pagespeed.Audit{{ID: "document-title", Title: "Document has a title", Score: scoreOf(1)}},
	}}
	results := execute(t, newLighthouseAudit(Options{Lighthouse: runner}), newPage(t, pageURL, "<p>x</p>", nil), nil)
	require.Len(t, results, 1)
	assert.Equal(t, check.StatusPass, results[0].Status)
	assert.Equal(t, "No category scores", results[0].Evidence)
}

func TestLighthouseSkipsErrorPages(t *testing.T) {
	runner := &fakeLighthouse{report: sampleLighthouse}
	p := newPage(t, pageURL, "<p>gone</p>", nil)
	p.StatusCode = 404
	assert.Empty(t, execute(t, newLighthouseAudit(Options{Lighthouse: runner}), p, nil))
	assert.Zero(t, runner.calls.Load())
}

func TestLighthouseFailures(t *testing.T) {
	tests := []struct {
		name    string
		runner  *fakeLighthouse
		message string
	}{
		{"error", &fakeLighthouse{err: errors.New("API returned status 429")}, "Lighthouse audit failed: API returned status 429"},
		{"timeout", &fakeLighthouse{block: true}, "Lighthouse audit failed: timed out after 20ms"},
		{"empty report", &fakeLighthouse{}, "Lighthouse audit failed: empty report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newLighthouseAudit(Options{Lighthouse: tt.runner, LighthouseTimeout: 20 * time.Millisecond})
			results := execute(t, c, newPage(t, pageURL, "<p>x</p>", nil), nil)
			require.Len(t, results, 1)
			assert.Equal(t, check.StatusError, results[0].Status)
			assert.Equal(t, tt.message, results[0].Message)
			assert.Equal(t, "Audit error", results[0].Evidence)
		})
	}
}
