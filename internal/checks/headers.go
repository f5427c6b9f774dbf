package checks

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type h1Presence struct{ check.Base }

func newH1Presence(Options) check.Check {
	return h1Presence{check.NewBase("h1_presence", "H1 Tag Presence", check.CategoryHeaderStructure, check.SeverityCritical)}
}

func (c h1Presence) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	h1 := p.Extract().H1
	switch len(h1) {
	case 0:
		return c.One(p, check.StatusFail, "Page is missing H1 tag",
			"Add a single H1 that describes the page topic", "No <h1> found"), nil
	case 1:
		if n := utf8.RuneCountInString(h1[0]); n > Thresholds.H1MaxLength {
			return c.One(p, check.StatusWarning, fmt.Sprintf("H1 is too long (%d characters)", n),
				fmt.Sprintf("Keep the H1 under %d characters", Thresholds.H1MaxLength), truncate(h1[0], 80)), nil
		}
		return c.One(p, check.StatusPass, "Page has exactly one H1 tag", "", truncate(h1[0], 80)), nil
	}
	return c.One(p, check.StatusWarning, fmt.Sprintf("Page has %d H1 tags", len(h1)),
		"Use a single H1 and demote the others to H2", sample(h1, 3)), nil
}

type headerHierarchy struct{ check.Base }

func newHeaderHierarchy(Options) check.Check {
	return headerHierarchy{check.NewBase("header_hierarchy", "Header Hierarchy", check.CategoryHeaderStructure, check.SeverityMedium)}
}

func (c headerHierarchy) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	headings := p.Extract().Headings
	if len(headings) == 0 {
		return c.One(p, check.StatusWarning, "No header tags found",
			"Structure the content with H1-H6 headings", ""), nil
	}

	outline := make([]string, 0, len(headings))
	hasH1 := false
	var skips []string
	prev := 0
	for _, h := range headings {
		outline = append(outline, fmt.Sprintf("H%d", h.Level))
		if h.Level == 1 {
			hasH1 = true
		}
		if prev > 0 && h.Level > prev+1 {
			skips = append(skips, fmt.Sprintf("H%d to H%d", prev, h.Level))
		}
		prev = h.Level
	}
	evidence := truncate(strings.Join(outline, " > "), 120)

	switch {
	case !hasH1:
		return c.One(p, check.StatusWarning, "Header hierarchy has no H1",
			"Start the heading outline with an H1", evidence), nil
	case len(skips) > 0:
		return c.One(p, check.StatusWarning, "Header levels are skipped: "+sample(skips, 3),
			"Nest headings one level at a time", evidence), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Header hierarchy is well formed (%s)", plural(len(headings), "heading")),
		"", evidence), nil
}

type h1Uniqueness struct{ check.Base }

func newH1Uniqueness(Options) check.Check {
	return h1Uniqueness{check.NewBase("h1_uniqueness", "H1 Tag Uniqueness", check.CategoryHeaderStructure, check.SeverityHigh).WithSiteContext()}
}

func (c h1Uniqueness) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "compare H1 tags across pages"), nil
	}
	h1 := p.Record().H1
	if h1 == "" {
		return nil, nil
	}

	others := without(site.PagesWithH1(h1), p.URL)
	if len(others) > 0 {
		return c.One(p, check.StatusFail,
			fmt.Sprintf("H1 tag is duplicated across %d pages", len(others)+1),
			"Give every page an H1 that describes its own topic", sample(others, 3)), nil
	}
	return c.One(p, check.StatusPass, "H1 tag is unique within the crawl", "", truncate(h1, 80)), nil
}
