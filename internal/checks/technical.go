package checks

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type httpStatus struct{ check.Base }

func newHTTPStatus(Options) check.Check {
	return httpStatus{check.NewBase("http_status", "HTTP Status", check.CategoryTechnicalSEO, check.SeverityCritical)}
}

func (c httpStatus) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	code := p.StatusCode
	evidence := fmt.Sprintf("%d %s", code, http.StatusText(code))
	hops := len(p.Redirects)

	switch {
	case code >= 500:
		return c.One(p, check.StatusFail, fmt.Sprintf("Server error (%d)", code),
			"Fix the server error so the page can be crawled", evidence), nil
	case code >= 400:
		return c.One(p, check.StatusFail, fmt.Sprintf("Client error (%d)", code),
			"Restore the page or redirect it to a live URL", evidence), nil
	case code >= 300:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Page redirects (%d)", code),
			"Link to the final URL directly", evidence), nil
	case code < 200:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Unexpected status (%d)", code), "", evidence), nil
	case hops > Thresholds.MaxRedirectChain:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Reached through a chain of %d redirects", hops),
			"Point links and redirects at the final URL", strings.Join(p.Redirects, " -> ")), nil
	}
	return c.One(p, check.StatusPass, "Page responds successfully", "", evidence), nil
}

type urlStructure struct{ check.Base }

func newURLStructure(Options) check.Check {
	return urlStructure{check.NewBase("url_structure", "URL Structure", check.CategoryTechnicalSEO, check.SeverityLow)}
}

func (c urlStructure) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	var issues []string
	if len(p.URL) > Thresholds.URLMaxLength {
		issues = append(issues, fmt.Sprintf("over %d characters", Thresholds.URLMaxLength))
	}
	if strings.IndexFunc(u.Path, unicode.IsUpper) >= 0 {
		issues = append(issues, "uppercase")
	}
	if strings.Contains(u.Path, "_") {
		issues = append(issues, "underscores")
	}
	if strings.Contains(u.Path, " ") || strings.Contains(u.EscapedPath(), "%20") {
		issues = append(issues, "spaces")
	}
	if strings.Contains(u.Path, "//") {
		issues = append(issues, "double slash")
	}
	if strings.IndexFunc(p.URL, func(r rune) bool { return r > unicode.MaxASCII }) >= 0 {
		issues = append(issues, "non-ASCII")
	}

	if len(issues) > 0 {
		return c.One(p, check.StatusWarning, "URL structure issues: "+strings.Join(issues, ", "),
			"Use short, lowercase, hyphen-separated URLs", p.URL), nil
	}
	return c.One(p, check.StatusPass, "URL is clean and readable", "", p.URL), nil
}
