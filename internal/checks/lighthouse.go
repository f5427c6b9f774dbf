package checks

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
	"github.com/spider-crawler/seoaudit/internal/pagespeed"
)

// LighthouseRunner runs Lighthouse against a live URL.
type LighthouseRunner interface {
	Run(ctx context.Context, url string) (*pagespeed.Report, error)
}

// lighthouseAudit reports the Lighthouse audits a page scores poorly on, with
// a summary of its category scores first.
type lighthouseAudit struct {
	check.Base
	runner  LighthouseRunner
	timeout time.Duration
}

func newLighthouseAudit(opts Options) check.Check {
	return lighthouseAudit{
		Base:    check.NewBase("lighthouse_audit", "Lighthouse Audit", check.CategoryPerformance, check.SeverityHigh),
		runner:  opts.Lighthouse,
		timeout: opts.LighthouseTimeout,
	}
}

func (c lighthouseAudit) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	if c.runner == nil {
		return c.One(p, check.StatusInfo, "Lighthouse is not configured",
			"Enable the lighthouse section to audit pages through PageSpeed Insights", "Not available"), nil
	}
	if p.StatusCode >= 400 {
		return nil, nil
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultLighthouseTimeout
	}
	report, err := bounded(timeout, func(ctx context.Context) (*pagespeed.Report, error) {
		return c.runner.Run(ctx, p.URL)
	})
	if err != nil {
		return c.One(p, check.StatusError, "Lighthouse audit failed: "+err.Error(),
			"Check the PageSpeed Insights API key and that the page is publicly reachable", "Audit error"), nil
	}
	return c.grade(p, report), nil
}

func (c lighthouseAudit) grade(p *page.Content, report *pagespeed.Report) []check.Result {
	evidence := categoryScores(report.Categories)
	below := report.Below(Thresholds.LighthousePass)
	if len(below) == 0 {
		return c.One(p, check.StatusPass, "All Lighthouse audits passed", "", evidence)
	}

	failing := 0
	for _, a := range below {
		if *a.Score < Thresholds.LighthouseFail {
			failing++
		}
	}
	status := check.StatusWarning
	if failing > 0 {
		status = check.StatusFail
	}
	results := []check.Result{c.Result(p, status,
		fmt.Sprintf("Lighthouse found %s and %s", plural(failing, "failing audit"), plural(len(below)-failing, "warning")),
		"Address the audits listed below, lowest score first", evidence)}

	if len(below) > Thresholds.LighthouseFindings {
		below = below[:Thresholds.LighthouseFindings]
	}
	for _, a := range below {
		st, sev := check.StatusWarning, check.SeverityMedium
		switch {
		case *a.Score < Thresholds.LighthouseCritical:
			st, sev = check.StatusFail, check.SeverityCritical
		case *a.Score < Thresholds.LighthouseFail:
			st, sev = check.StatusFail, check.SeverityHigh
		}
		rec := "Address: " + a.Title
		if a.DisplayValue != "" {
			rec = fmt.Sprintf("Improve %s (currently %s)", a.Title, a.DisplayValue)
		}
		results = append(results, c.Result(p, st,
			fmt.Sprintf("%s (%s)", a.Title, a.ID), rec,
			fmt.Sprintf("score %d%%", percent(*a.Score))).WithSeverity(sev))
	}
	return results
}

// categoryScores lists the category scores in request order.
func categoryScores(scores map[string]float64) string {
	var parts []string
	for _, cat := range pagespeed.Categories {
		if s, ok := scores[cat]; ok {
			parts = append(parts, fmt.Sprintf("%s %d", cat, percent(s)))
		}
	}
	if len(parts) == 0 {
		return "No category scores"
	}
	return strings.Join(parts, ", ")
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}
