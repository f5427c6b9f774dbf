package checks

import (
	"fmt"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

// vitalCheck grades one Core Web Vitals metric against good/poor bounds.
type vitalCheck struct {
	check.Base
	key      string
	label    string
	good     float64
	poor     float64
	format   string
	improve  string
	critical string
}

func newLCP(Options) check.Check {
	return vitalCheck{
		Base:     check.NewBase("lcp", "Largest Contentful Paint (LCP)", check.CategoryCoreWebVitals, check.SeverityCritical),
		key:      page.VitalLCP,
		label:    "LCP",
		good:     Thresholds.LCPGood,
		poor:     Thresholds.LCPPoor,
		format:   "%.0fms",
		improve:  "Optimize largest content element loading",
		critical: "Significantly optimize largest element loading",
	}
}

func newFCP(Options) check.Check {
	return vitalCheck{
		Base:     check.NewBase("fcp", "First Contentful Paint (FCP)", check.CategoryCoreWebVitals, check.SeverityHigh),
		key:      page.VitalFCP,
		label:    "FCP",
		good:     Thresholds.FCPGood,
		poor:     Thresholds.FCPPoor,
		format:   "%.0fms",
		improve:  "Reduce render-blocking resources",
		critical: "Eliminate render-blocking resources and speed up the server response",
	}
}

func newCLS(Options) check.Check {
	return vitalCheck{
		Base:     check.NewBase("cls", "Cumulative Layout Shift (CLS)", check.CategoryCoreWebVitals, check.SeverityCritical),
		key:      page.VitalCLS,
		label:    "CLS",
		good:     Thresholds.CLSGood,
		poor:     Thresholds.CLSPoor,
		format:   "%.3f",
		improve:  "Reserve space for images and embeds to reduce layout shifts",
		critical: "Set explicit dimensions on media and avoid inserting content above existing content",
	}
}

func (c vitalCheck) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	v, ok := p.Vital(c.key)
	if !ok {
		return c.One(p, check.StatusInfo, c.label+" measurement not available",
			"Enable JavaScript rendering to measure Core Web Vitals", "Not measured"), nil
	}

	value := fmt.Sprintf(c.format, v)
	switch {
	case v <= c.good:
		return c.One(p, check.StatusPass, fmt.Sprintf("%s is good (%s)", c.label, value),
			c.label+" is within recommended threshold", value), nil
	case v <= c.poor:
		return c.One(p, check.StatusWarning, fmt.Sprintf("%s needs improvement (%s)", c.label, value),
			c.improve, value), nil
	}
	return c.One(p, check.StatusFail, fmt.Sprintf("%s is poor (%s)", c.label, value), c.critical, value), nil
}
