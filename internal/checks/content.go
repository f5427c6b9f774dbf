package checks

import (
	"fmt"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type contentWordCount struct{ check.Base }

func newContentWordCount(Options) check.Check {
	return contentWordCount{check.NewBase("content_word_count", "Content Word Count", check.CategoryContent, check.SeverityMedium)}
}

func (c contentWordCount) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	words := p.Extract().WordCount
	evidence := plural(words, "word")
	if words < Thresholds.MinWordCount {
		return c.One(p, check.StatusWarning, "Thin content detected",
			fmt.Sprintf("Expand the page to at least %d words of useful content", Thresholds.MinWordCount), evidence), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Page has %d words of content", words), "", evidence), nil
}

type duplicateContent struct{ check.Base }

func newDuplicateContent(Options) check.Check {
	return duplicateContent{check.NewBase("duplicate_content", "Duplicate Content", check.CategoryContent, check.SeverityHigh).WithSiteContext()}
}

func (c duplicateContent) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "detect duplicate content"), nil
	}
	fp := p.Extract().Fingerprint
	if fp == "" {
		return nil, nil
	}

	others := without(site.SimilarContentPages(fp), p.URL)
	if len(others) > 0 {
		return c.One(p, check.StatusWarning,
			fmt.Sprintf("Content is identical to %s", plural(len(others), "other page")),
			"Consolidate duplicates or point them at one canonical URL", sample(others, 3)), nil
	}
	return c.One(p, check.StatusPass, "Page content is unique within the crawl", "", ""), nil
}

type duplicateTitle struct{ check.Base }

func newDuplicateTitle(Options) check.Check {
	return duplicateTitle{check.NewBase("duplicate_title", "Duplicate Title", check.CategoryContent, check.SeverityMedium).WithSiteContext()}
}

func (c duplicateTitle) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "detect duplicate titles"), nil
	}
	title := p.Extract().Title
	if title == "" {
		return nil, nil
	}

	others := without(site.PagesWithTitle(title), p.URL)
	if len(others) > 0 {
		return c.One(p, check.StatusWarning,
			fmt.Sprintf("Title is shared with %s", plural(len(others), "other page")),
			"Give every page a unique title", sample(others, 3)), nil
	}
	return c.One(p, check.StatusPass, "Title is unique within the crawl", "", truncate(title, 80)), nil
}

type thinContent struct{ check.Base }

func newThinContent(Options) check.Check {
	return thinContent{check.NewBase("thin_content_detection", "Thin Content Detection", check.CategoryContent, check.SeverityHigh).WithSiteContext()}
}

func (c thinContent) Execute(p *page.Content, site *crawlctx.CrawlContext) ([]check.Result, error) {
	if site == nil {
		return c.ContextRequired(p, "detect thin and boilerplate content"), nil
	}
	if rec, ok := site.Page(p.URL); ok && !rec.Indexable {
		return c.One(p, check.StatusInfo, "Page is not indexable; its content is not ranked", "", "Not indexable"), nil
	}

	e := p.Extract()
	words := e.WordCount
	var similar []string
	for _, u := range without(site.SimilarContentPages(e.Fingerprint), p.URL) {
		if rec, ok := site.Page(u); ok && rec.Indexable {
			similar = append(similar, u)
		}
	}
	evidence := fmt.Sprintf("%s, %s", plural(words, "word"), plural(len(similar), "similar page"))

	switch {
	case words < Thresholds.ThinWordCount:
		return c.One(p, check.StatusFail, fmt.Sprintf("Very thin content: %s", plural(words, "word")),
			fmt.Sprintf("Add substantial unique content, at least %d words", Thresholds.MinWordCount), evidence), nil
	case words < Thresholds.MinWordCount:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Thin content: %s", plural(words, "word")),
			fmt.Sprintf("Expand the page to %d or more words of unique content", Thresholds.MinWordCount), evidence), nil
	case len(similar) > 0:
		return c.One(p, check.StatusWarning,
			fmt.Sprintf("Boilerplate content: same text as %s", plural(len(similar), "indexable page")),
			"Make each indexable page carry its own content, or noindex the copies", evidence), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Good content length: %s", plural(words, "word")), "", evidence), nil
}
