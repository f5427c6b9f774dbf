package checks

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// avgCharWidth is a rough SERP glyph width in pixels.
const avgCharWidth = 8.5

func pixelWidth(s string) int {
	return int(float64(utf8.RuneCountInString(s)) * avgCharWidth)
}

type titlePresence struct{ check.Base }

func newTitlePresence(Options) check.Check {
	return titlePresence{check.NewBase("title_presence", "Page Title Presence", check.CategoryMetaTags, check.SeverityCritical)}
}

func (c titlePresence) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	e := p.Extract()
	switch {
	case e.Title == "":
		return c.One(p, check.StatusFail, "Page is missing a title tag",
			"Add a unique, descriptive <title> to the page head", "No <title> found"), nil
	case e.TitleCount > 1:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Page has %d title tags", e.TitleCount),
			"Keep a single <title> element per page", truncate(e.Title, 80)), nil
	}
	return c.One(p, check.StatusPass, "Page has a title tag", "", truncate(e.Title, 80)), nil
}

type titleLength struct{ check.Base }

func newTitleLength(Options) check.Check {
	return titleLength{check.NewBase("title_length", "Title Length", check.CategoryMetaTags, check.SeverityHigh)}
}

func (c titleLength) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	title := p.Extract().Title
	if title == "" {
		return nil, nil
	}
	n := utf8.RuneCountInString(title)
	px := pixelWidth(title)
	evidence := fmt.Sprintf("%q", truncate(title, 80))

	switch {
	case n < Thresholds.TitleMinLength:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Title is too short (%d characters)", n),
			fmt.Sprintf("Expand title to %d-%d characters for better SEO", Thresholds.TitleMinLength, Thresholds.TitleMaxLength),
			evidence), nil
	case n > Thresholds.TitleMaxLength:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Title is too long (%d characters, ~%dpx)", n, px),
			"Shorten title to prevent truncation in search results", evidence), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Title length is optimal (%d characters, ~%dpx)", n, px),
		"Title length is well optimized", evidence), nil
}

type descriptionPresence struct{ check.Base }

func newDescriptionPresence(Options) check.Check {
	return descriptionPresence{check.NewBase("description_presence", "Meta Description Presence", check.CategoryMetaTags, check.SeverityHigh)}
}

func (c descriptionPresence) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	e := p.Extract()
	switch {
	case !e.HasDescription:
		return c.One(p, check.StatusFail, "Page is missing a meta description",
			"Add a meta description summarizing the page", "No meta description found"), nil
	case strings.TrimSpace(e.MetaDescription) == "":
		return c.One(p, check.StatusFail, "Meta description is empty",
			"Write a meta description summarizing the page", `content=""`), nil
	}
	return c.One(p, check.StatusPass, "Page has a meta description", "", truncate(e.MetaDescription, 100)), nil
}

type descriptionLength struct{ check.Base }

func newDescriptionLength(Options) check.Check {
	return descriptionLength{check.NewBase("description_length", "Meta Description Length", check.CategoryMetaTags, check.SeverityMedium)}
}

func (c descriptionLength) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	desc := strings.TrimSpace(p.Extract().MetaDescription)
	if desc == "" {
		return nil, nil
	}
	n := utf8.RuneCountInString(desc)
	evidence := truncate(desc, 100)

	switch {
	case n < Thresholds.MetaDescMinLength:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Description is too short (%d characters)", n),
			fmt.Sprintf("Expand description to %d-%d characters", Thresholds.MetaDescMinLength, Thresholds.MetaDescMaxLength),
			evidence), nil
	case n > Thresholds.MetaDescMaxLength:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Description is too long (%d characters)", n),
			"Shorten description to prevent truncation in SERPs", evidence), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Description length is optimal (%d characters)", n),
		"Description length is well optimized", evidence), nil
}

type canonicalURL struct{ check.Base }

func newCanonicalURL(Options) check.Check {
	return canonicalURL{check.NewBase("canonical_url", "Canonical URL", check.CategoryMetaTags, check.SeverityHigh)}
}

func (c canonicalURL) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	canonical := p.Extract().Canonical
	if canonical == "" {
		return c.One(p, check.StatusWarning, "Page has no canonical URL",
			"Add a rel=\"canonical\" link to avoid duplicate content issues", "No canonical link found"), nil
	}

	n := urlutil.NewNormalizer()
	self, errSelf := n.Normalize(p.URL)
	target, errTarget := n.Normalize(canonical)
	if errSelf == nil && errTarget == nil && self != target {
		return c.One(p, check.StatusInfo, "Canonical URL points to a different page",
			"Confirm this page is meant to consolidate into the canonical target", canonical), nil
	}
	return c.One(p, check.StatusPass, "Page has a self-referencing canonical URL", "", canonical), nil
}

type robotsMeta struct{ check.Base }

func newRobotsMeta(Options) check.Check {
	return robotsMeta{check.NewBase("robots_meta", "Robots Meta Tag", check.CategoryMetaTags, check.SeverityMedium)}
}

func (c robotsMeta) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	sources := []string{p.Extract().MetaRobots, p.Header("X-Robots-Tag")}

	var restricted []string
	for _, directive := range []string{"noindex", "nofollow"} {
		for _, src := range sources {
			if page.HasDirective(src, directive) {
				restricted = append(restricted, directive)
				break
			}
		}
	}

	evidence := strings.Trim(strings.Join(sources, "; "), "; ")
	if len(restricted) > 0 {
		return c.One(p, check.StatusWarning, "Robots tag restricts indexing: "+strings.Join(restricted, ", "),
			"Remove the restriction unless the page should stay out of search results", evidence), nil
	}
	return c.One(p, check.StatusPass, "Page allows indexing and following", "", evidence), nil
}

var openGraphTags = []string{"og:title", "og:description", "og:image"}

type openGraph struct{ check.Base }

func newOpenGraph(Options) check.Check {
	return openGraph{check.NewBase("open_graph", "Open Graph Tags", check.CategoryMetaTags, check.SeverityLow)}
}

func (c openGraph) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	og := p.Extract().OpenGraph

	var found, missing []string
	for _, tag := range openGraphTags {
		if strings.TrimSpace(og[tag]) != "" {
			found = append(found, tag)
		} else {
			missing = append(missing, tag)
		}
	}

	msg := fmt.Sprintf("%d of %d Open Graph tags present", len(found), len(openGraphTags))
	if len(found) >= Thresholds.MinOpenGraphTags {
		return c.One(p, check.StatusPass, msg, "", strings.Join(found, ", ")), nil
	}
	return c.One(p, check.StatusWarning, msg,
		"Add "+strings.Join(missing, ", ")+" for better social sharing", strings.Join(found, ", ")), nil
}
