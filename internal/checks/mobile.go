package checks

import (
	"regexp"
	"strings"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

var fixedWidth = regexp.MustCompile(`width\s*=\s*\d+`)

type viewport struct{ check.Base }

func newViewport(Options) check.Check {
	return viewport{check.NewBase("viewport", "Viewport Meta Tag", check.CategoryMobileUsability, check.SeverityHigh)}
}

func (c viewport) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	content, _ := p.MetaContent("viewport")
	if content == "" {
		return c.One(p, check.StatusFail, "Missing viewport meta tag",
			`Add <meta name="viewport" content="width=device-width, initial-scale=1">`, "No viewport meta tag"), nil
	}

	v := strings.ToLower(strings.ReplaceAll(content, " ", ""))
	switch {
	case !strings.Contains(v, "device-width") && fixedWidth.MatchString(v):
		return c.One(p, check.StatusWarning, "Viewport uses a fixed width",
			"Use width=device-width so the layout adapts to the screen", content), nil
	case strings.Contains(v, "user-scalable=no") || strings.Contains(v, "user-scalable=0") ||
		strings.Contains(v, "maximum-scale=1,") || strings.HasSuffix(v, "maximum-scale=1") ||
		strings.Contains(v, "maximum-scale=1.0"):
		return c.One(p, check.StatusWarning, "Viewport prevents zooming",
			"Allow users to zoom; remove user-scalable=no and maximum-scale=1", content), nil
	}
	return c.One(p, check.StatusPass, "Viewport is configured for mobile devices", "", content), nil
}
