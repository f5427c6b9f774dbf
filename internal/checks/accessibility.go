package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type langAttribute struct{ check.Base }

func newLangAttribute(Options) check.Check {
	return langAttribute{check.NewBase("lang_attribute", "Language Attribute", check.CategoryAccessibility, check.SeverityHigh)}
}

func (c langAttribute) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	lang := p.Extract().Language
	if lang == "" {
		return c.One(p, check.StatusFail, "Missing HTML lang attribute",
			"Declare the page language, for example <html lang=\"en\">", "<html> has no lang"), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Page language is declared (%s)", lang), "", "lang="+lang), nil
}

// AxeScanner runs axe-core against a live URL.
type AxeScanner interface {
	Scan(ctx context.Context, url string) (*page.AxeReport, error)
}

// axeAudit reports axe-core violations. It prefers a report captured during
// rendering and falls back to an on-demand scan bounded by its own timeout.
type axeAudit struct {
	check.Base
	scanner AxeScanner
	timeout time.Duration
}

func newAxeAudit(opts Options) check.Check {
	return axeAudit{
		Base:    check.NewBase("axe_core_audit", "Axe-core Accessibility Audit", check.CategoryAccessibility, check.SeverityHigh),
		scanner: opts.AxeScanner,
		timeout: opts.AxeTimeout,
	}
}

func (c axeAudit) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	report := p.Axe
	if report == nil {
		if c.scanner == nil {
			return c.One(p, check.StatusInfo, "Axe-core requires JavaScript rendering",
				"Enable rendering to run the axe-core accessibility audit", "Not rendered"), nil
		}
		var err error
		report, err = c.scan(p.URL)
		if err != nil {
			return c.One(p, check.StatusError, "Axe-core scan failed: "+err.Error(),
				"Check that the browser can load the page and reach the axe-core script", "Scan error"), nil
		}
	}
	return c.grade(p, report), nil
}

func (c axeAudit) scan(url string) (*page.AxeReport, error) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultAxeTimeout
	}
	return bounded(timeout, func(ctx context.Context) (*page.AxeReport, error) {
		return c.scanner.Scan(ctx, url)
	})
}

var axeImpactSeverity = map[string]check.Severity{
	"critical": check.SeverityCritical,
	"serious":  check.SeverityHigh,
	"moderate": check.SeverityMedium,
	"minor":    check.SeverityLow,
}

// grade emits a summary plus one finding per violated rule.
func (c axeAudit) grade(p *page.Content, report *page.AxeReport) []check.Result {
	evidence := fmt.Sprintf("%d violations, %d passes, %d incomplete",
		len(report.Violations), report.Passes, report.Incomplete)
	if len(report.Violations) == 0 {
		return c.One(p, check.StatusPass, "No accessibility violations found", "", evidence)
	}

	severe := 0
	for _, v := range report.Violations {
		if v.Impact == "critical" || v.Impact == "serious" {
			severe++
		}
	}

	status := check.StatusWarning
	if severe > 0 {
		status = check.StatusFail
	}
	results := []check.Result{c.Result(p, status,
		fmt.Sprintf("Found %s (%d critical or serious)", plural(len(report.Violations), "accessibility violation"), severe),
		"Fix the violations listed below, starting with the highest impact", evidence)}

	for _, v := range report.Violations {
		st := check.StatusWarning
		if v.Impact == "critical" || v.Impact == "serious" {
			st = check.StatusFail
		}
		r := c.Result(p, st,
			fmt.Sprintf("%s (%s): %s", v.Help, v.ID, plural(v.Nodes, "element")),
			strings.TrimSpace("See "+v.HelpURL),
			"impact: "+valueOrNone(v.Impact))
		if sev, ok := axeImpactSeverity[v.Impact]; ok {
			r = r.WithSeverity(sev)
		}
		results = append(results, r)
	}
	return results
}
