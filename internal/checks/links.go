package checks

import (
	"fmt"
	"strings"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type orphanPage struct{ check.Base }

func newOrphanPage(Options) check.Check {
	return orphanPage{check.NewBase("orphan_page_check", "Orphan Page Check", check.CategoryLinks, check.SeverityHigh).WithSiteContext()}
}

func (c orphanPage) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "detect orphan pages"), nil
	}

	inbound := site.InboundCount(p.URL)
	if site.IsOrphan(p.URL) {
		return c.One(p, check.StatusFail,
			"Orphan page detected: No internal links pointing to this page",
			"Add internal links from other pages to improve discoverability and crawlability",
			plural(inbound, "inbound link")), nil
	}
	return c.One(p, check.StatusPass,
		fmt.Sprintf("Page has %d inbound internal link(s)", inbound), "",
		plural(inbound, "inbound link")), nil
}

type navigationDepth struct{ check.Base }

func newNavigationDepth(Options) check.Check {
	return navigationDepth{check.NewBase("navigation_depth", "Page Navigation Depth", check.CategoryLinks, check.SeverityMedium).WithSiteContext()}
}

func (c navigationDepth) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "measure navigation depth"), nil
	}

	depth := site.PageDepth(p.URL)
	evidence := fmt.Sprintf("Depth: %d", depth)
	switch {
	case depth == crawlctx.Unreachable:
		return c.One(p, check.StatusFail, "Page is not reachable from homepage",
			"Link to this page from the homepage or a page reachable from it", "Unreachable"), nil
	case depth <= Thresholds.NavDepthGood:
		return c.One(p, check.StatusPass, fmt.Sprintf("Page is %d click(s) from homepage", depth), "", evidence), nil
	case depth <= Thresholds.NavDepthMax:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Page is %d clicks from homepage", depth),
			fmt.Sprintf("Keep important pages within %d clicks of the homepage", Thresholds.NavDepthGood), evidence), nil
	}
	return c.One(p, check.StatusFail, fmt.Sprintf("Page is %d clicks from homepage (too deep)", depth),
		"Flatten the site structure or add shortcuts from hub pages", evidence), nil
}

type internalLinks struct{ check.Base }

func newInternalLinks(Options) check.Check {
	return internalLinks{check.NewBase("internal_links", "Internal Links Count", check.CategoryLinks, check.SeverityMedium)}
}

func (c internalLinks) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	n := 0
	for _, l := range p.Extract().Links {
		if l.Internal {
			n++
		}
	}

	evidence := plural(n, "internal link")
	switch {
	case n < Thresholds.MinInternalLinks:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Only %d internal links found", n),
			"Link to related pages to spread authority and help crawlers", evidence), nil
	case n > Thresholds.MaxInternalLinks:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Too many internal links (%d)", n),
			fmt.Sprintf("Keep the page under %d internal links", Thresholds.MaxInternalLinks), evidence), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Page has %d internal links", n), "", evidence), nil
}

type nofollowLinks struct{ check.Base }

func newNofollowLinks(Options) check.Check {
	return nofollowLinks{check.NewBase("nofollow_links_analysis", "Nofollow Links Analysis", check.CategoryLinks, check.SeverityLow)}
}

func (c nofollowLinks) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	links := p.Extract().Links
	if len(links) == 0 {
		return nil, nil
	}

	var internal []string
	external := 0
	for _, l := range links {
		if !l.Nofollow {
			continue
		}
		if l.Internal {
			internal = append(internal, l.URL)
		} else {
			external++
		}
	}

	if len(internal) > 0 {
		return c.One(p, check.StatusWarning, fmt.Sprintf("%d internal links are nofollowed", len(internal)),
			"Remove rel=\"nofollow\" from internal links so link equity flows through the site",
			sample(internal, 3)), nil
	}
	return c.One(p, check.StatusPass, "No internal links are nofollowed", "",
		fmt.Sprintf("%d of %d links nofollowed (all external)", external, len(links))), nil
}

// brokenInternalLinks checks the crawled status of every internal target and
// flags hrefs that look malformed.
type brokenInternalLinks struct{ check.Base }

func newBrokenInternalLinks(Options) check.Check {
	return brokenInternalLinks{check.NewBase("broken_internal_links", "Internal Link Quality", check.CategoryLinks, check.SeverityHigh).WithSiteContext()}
}

func (c brokenInternalLinks) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "verify internal link targets"), nil
	}

	edges := site.EdgesFrom(p.URL)
	var suspicious []string
	for _, l := range p.Extract().Links {
		if l.Internal && suspiciousHref(l.Href) {
			suspicious = append(suspicious, l.Href)
		}
	}

	seen := make(map[string]struct{})
	var broken []string
	checked := 0
	for _, e := range edges {
		if !e.IsInternal {
			continue
		}
		if _, ok := seen[e.Target]; ok {
			continue
		}
		seen[e.Target] = struct{}{}
		rec, ok := site.Page(e.Target)
		if !ok {
			continue
		}
		checked++
		if rec.StatusCode >= 400 {
			broken = append(broken, fmt.Sprintf("%s (%d)", e.Target, rec.StatusCode))
		}
	}

	if len(seen) == 0 && len(suspicious) == 0 {
		return nil, nil
	}

	switch {
	case len(broken) > 0:
		return c.One(p, check.StatusFail, fmt.Sprintf("%s to error pages", plural(len(broken), "internal link")),
			"Fix or remove links to pages that return errors", sample(broken, 3)), nil
	case len(suspicious) > 0:
		return c.One(p, check.StatusWarning, fmt.Sprintf("%s look malformed", plural(len(suspicious), "internal link")),
			"Check the href values for typos", sample(suspicious, 3)), nil
	}
	return c.One(p, check.StatusPass, "All crawled internal link targets respond successfully", "",
		fmt.Sprintf("%d of %d targets crawled", checked, len(seen))), nil
}

func suspiciousHref(href string) bool {
	h := strings.TrimSpace(href)
	if strings.Count(h, "#") > 1 || strings.Contains(h, " ") {
		return true
	}
	rest := h
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	return strings.Contains(rest, "//")
}

type externalLinkSecurity struct{ check.Base }

func newExternalLinkSecurity(Options) check.Check {
	return externalLinkSecurity{check.NewBase("external_link_security", "External Link Security", check.CategoryLinks, check.SeverityMedium)}
}

func (c externalLinkSecurity) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	var blank, unsafe []string
	for _, l := range p.Extract().Links {
		if l.Internal || !strings.EqualFold(l.Target, "_blank") {
			continue
		}
		blank = append(blank, l.URL)
		rel := strings.Fields(strings.ToLower(l.Rel))
		if !containsAny(rel, "noopener", "noreferrer") {
			unsafe = append(unsafe, l.URL)
		}
	}

	if len(blank) == 0 {
		return nil, nil
	}
	if len(unsafe) > 0 {
		return c.One(p, check.StatusFail,
			fmt.Sprintf("%d/%d target=\"_blank\" links lack security attributes", len(unsafe), len(blank)),
			"Add rel=\"noopener noreferrer\" to links that open a new tab", sample(unsafe, 3)), nil
	}
	return c.One(p, check.StatusPass, "All target=\"_blank\" links use rel=\"noopener\"", "",
		plural(len(blank), "link")), nil
}

func containsAny(items []string, want ...string) bool {
	for _, it := range items {
		for _, w := range want {
			if it == w {
				return true
			}
		}
	}
	return false
}

type deepLinkRatio struct{ check.Base }

func newDeepLinkRatio(Options) check.Check {
	return deepLinkRatio{check.NewBase("deep_link_ratio", "Deep Link Distribution", check.CategoryLinks, check.SeverityLow).WithSiteContext()}
}

func (c deepLinkRatio) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "analyze link distribution"), nil
	}

	targets := site.Successors(p.URL)
	if len(targets) == 0 {
		return c.One(p, check.StatusWarning, "Page has no outbound internal links",
			"Link to related pages so visitors and crawlers can move deeper into the site", "0 outbound links"), nil
	}

	deep := 0
	for _, t := range targets {
		if site.PageDepth(t) >= Thresholds.DeepLinkDepth {
			deep++
		}
	}
	ratio := float64(deep) / float64(len(targets)) * 100
	evidence := fmt.Sprintf("%d/%d deep links (%.1f%%)", deep, len(targets), ratio)

	switch {
	case ratio >= Thresholds.DeepLinkRatioGood:
		return c.One(p, check.StatusPass,
			fmt.Sprintf("Good deep link distribution: %.1f%% of links go to deeper pages", ratio), "", evidence), nil
	case ratio >= Thresholds.DeepLinkRatioMin:
		return c.One(p, check.StatusWarning,
			fmt.Sprintf("Moderate deep link distribution: %.1f%% of links go to deeper pages", ratio),
			"Link to more pages that sit deep in the site structure", evidence), nil
	}
	return c.One(p, check.StatusInfo,
		fmt.Sprintf("Low deep link distribution: %.1f%% of links go to deeper pages", ratio),
		"Add links to deep pages to improve their discoverability", evidence), nil
}
