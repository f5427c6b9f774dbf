package checks

import (
	"fmt"
	"strings"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type hreflang struct{ check.Base }

func newHreflang(Options) check.Check {
	return hreflang{check.NewBase("hreflang_tags", "Hreflang Tags", check.CategoryInternationalSEO, check.SeverityMedium)}
}

func (c hreflang) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	tags := p.Hreflangs()
	if len(tags) == 0 {
		return c.One(p, check.StatusInfo, "No hreflang tags found",
			"Add hreflang annotations if the site serves several languages or regions", ""), nil
	}

	var langs, invalid []string
	for _, t := range tags {
		langs = append(langs, t.Lang)
		if !validHreflang(t.Lang) {
			invalid = append(invalid, t.Lang)
		}
	}

	if len(invalid) > 0 {
		return c.One(p, check.StatusWarning, plural(len(invalid), "hreflang code")+" "+isAre(len(invalid))+" invalid",
			"Use ISO 639-1 language codes with optional ISO 3166-1 regions, or x-default", sample(invalid, 5)), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Found %s", plural(len(tags), "hreflang tag")), "", sample(langs, 5)), nil
}

func validHreflang(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "x-default" {
		return true
	}
	parts := strings.Split(code, "-")
	if len(parts) > 2 || len(parts[0]) < 2 || len(parts[0]) > 3 || !letters(parts[0]) {
		return false
	}
	if len(parts) == 2 && ((len(parts[1]) != 2 && len(parts[1]) != 4) || !letters(parts[1])) {
		return false
	}
	return true
}

func letters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}
