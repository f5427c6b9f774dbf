package checks

import (
	"fmt"
	"strings"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type pageLoadTime struct{ check.Base }

func newPageLoadTime(Options) check.Check {
	return pageLoadTime{check.NewBase("page_load_time", "Page Load Time", check.CategoryPerformance, check.SeverityHigh)}
}

func (c pageLoadTime) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	d := p.LoadTime()
	if d <= 0 {
		return nil, nil
	}
	secs := d.Seconds()
	evidence := fmt.Sprintf("%.2fs", secs)

	switch {
	case d < Thresholds.LoadTimeGood:
		return c.One(p, check.StatusPass, fmt.Sprintf("Page loads in %.2f seconds", secs),
			"Page load time is good", evidence), nil
	case d < Thresholds.LoadTimeMax:
		return c.One(p, check.StatusWarning, fmt.Sprintf("Page loads in %.2f seconds", secs),
			"Consider optimizing for faster load times", evidence), nil
	}
	return c.One(p, check.StatusFail, fmt.Sprintf("Page loads slowly (%.2f seconds)", secs),
		"Optimize images, scripts, and server response for faster loading", evidence), nil
}

var compressionEncodings = []string{"gzip", "br", "deflate", "zstd"}

type compression struct{ check.Base }

func newCompression(Options) check.Check {
	return compression{check.NewBase("gzip_compression", "Compression", check.CategoryPerformance, check.SeverityHigh)}
}

func (c compression) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	enc := strings.ToLower(strings.TrimSpace(p.Header("Content-Encoding")))
	for _, known := range compressionEncodings {
		if strings.Contains(enc, known) {
			return c.One(p, check.StatusPass, fmt.Sprintf("Response is compressed (%s)", enc), "",
				"Content-Encoding: "+enc), nil
		}
	}
	return c.One(p, check.StatusFail, "No compression detected",
		"Enable gzip or Brotli compression on the server", "Content-Encoding: "+valueOrNone(enc)), nil
}

type cacheHeaders struct{ check.Base }

func newCacheHeaders(Options) check.Check {
	return cacheHeaders{check.NewBase("cache_headers", "Browser Caching", check.CategoryPerformance, check.SeverityMedium)}
}

func (c cacheHeaders) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	cc := p.Header("Cache-Control")
	expires := p.Header("Expires")

	switch {
	case cc == "" && expires == "":
		return c.One(p, check.StatusWarning, "No caching headers found",
			"Set Cache-Control so browsers can reuse the response", "Cache-Control: none"), nil
	case strings.Contains(strings.ToLower(cc), "no-store"):
		return c.One(p, check.StatusInfo, "Response forbids caching (no-store)",
			"Allow caching unless the page carries private data", "Cache-Control: "+cc), nil
	case cc == "":
		return c.One(p, check.StatusPass, "Response sets an Expires header", "", "Expires: "+expires), nil
	}
	return c.One(p, check.StatusPass, "Caching headers are set", "", "Cache-Control: "+cc), nil
}

func valueOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
