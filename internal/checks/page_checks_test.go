package checks

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/page"
)

func anchors(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<a href="/p%d">p%d</a>`, i, i)
	}
	return b.String()
}

func withHeader(key, value string) func(*page.Content) {
	return func(p *page.Content) { p.Headers.Add(key, value) }
}

func withVital(key string, v float64) func(*page.Content) {
	return func(p *page.Content) { p.WebVitals[key] = v }
}

func TestPageChecks(t *testing.T) {
	tests := []struct {
		name    string
		check   func(Options) check.Check
		body    string
		setup   func(*page.Content)
		status  check.Status // empty means no results
		message string
	}{
		// meta tags
		{"title missing", newTitlePresence, "<p>x</p>", nil, check.StatusFail, "Page is missing a title tag"},
		{"two titles", newTitlePresence, "<title>A</title><title>B</title>", nil, check.StatusWarning, "Page has 2 title tags"},
		{"title present", newTitlePresence, "<title>Home</title>", nil, check.StatusPass, "Page has a title tag"},
		{"title short", newTitleLength, "<title>Short</title>", nil, check.StatusWarning, "Title is too short (5 characters)"},
		{"title optimal", newTitleLength, "<title>" + strings.Repeat("a", 45) + "</title>", nil, check.StatusPass, "Title length is optimal (45 characters"},
		{"title long", newTitleLength, "<title>" + strings.Repeat("a", 70) + "</title>", nil, check.StatusWarning, "Title is too long (70 characters"},
		{"title length without title", newTitleLength, "<p>x</p>", nil, "", ""},
		{"description missing", newDescriptionPresence, "<p>x</p>", nil, check.StatusFail, "Page is missing a meta description"},
		{"description empty", newDescriptionPresence, `<meta name="description" content=" ">`, nil, check.StatusFail, "Meta description is empty"},
		{"description present", newDescriptionPresence, `<meta name="description" content="About us">`, nil, check.StatusPass, "Page has a meta description"},
		{"description optimal", newDescriptionLength, `<meta name="description" content="` + strings.Repeat("d", 100) + `">`, nil, check.StatusPass, "Description length is optimal (100 characters)"},
		{"description short", newDescriptionLength, `<meta name="description" content="Too brief">`, nil, check.StatusWarning, "Description is too short (9 characters)"},
		{"description long", newDescriptionLength, `<meta name="description" content="` + strings.Repeat("d", 200) + `">`, nil, check.StatusWarning, "Description is too long (200 characters)"},
		{"canonical missing", newCanonicalURL, "<p>x</p>", nil, check.StatusWarning, "Page has no canonical URL"},
		{"canonical self", newCanonicalURL, `<link rel="canonical" href="/a">`, nil, check.StatusPass, "self-referencing"},
		{"canonical elsewhere", newCanonicalURL, `<link rel="canonical" href="/b">`, nil, check.StatusInfo, "different page"},
		{"robots noindex", newRobotsMeta, `<meta name="robots" content="noindex, follow">`, nil, check.StatusWarning, "Robots tag restricts indexing: noindex"},
		{"robots header none", newRobotsMeta, "<p>x</p>", withHeader("X-Robots-Tag", "none"), check.StatusWarning, "Robots tag restricts indexing: noindex, nofollow"},
		{"robots open", newRobotsMeta, `<meta name="robots" content="index, follow">`, nil, check.StatusPass, "Page allows indexing and following"},
		{"open graph enough", newOpenGraph, `<meta property="og:title" content="T"><meta property="og:image" content="i.png">`, nil, check.StatusPass, "2 of 3 Open Graph tags present"},
		{"open graph sparse", newOpenGraph, `<meta property="og:title" content="T">`, nil, check.StatusWarning, "1 of 3 Open Graph tags present"},

		// header structure
		{"h1 missing", newH1Presence, "<h2>x</h2>", nil, check.StatusFail, "Page is missing H1 tag"},
		{"h1 single", newH1Presence, "<h1>Welcome</h1>", nil, check.StatusPass, "exactly one H1"},
		{"h1 multiple", newH1Presence, "<h1>A</h1><h1>B</h1>", nil, check.StatusWarning, "Page has 2 H1 tags"},
		{"h1 too long", newH1Presence, "<h1>" + strings.Repeat("h", 80) + "</h1>", nil, check.StatusWarning, "H1 is too long (80 characters)"},
		{"no headings", newHeaderHierarchy, "<p>x</p>", nil, check.StatusWarning, "No header tags found"},
		{"hierarchy without h1", newHeaderHierarchy, "<h2>A</h2><h3>B</h3>", nil, check.StatusWarning, "Header hierarchy has no H1"},
		{"hierarchy skip", newHeaderHierarchy, "<h1>A</h1><h3>B</h3>", nil, check.StatusWarning, "Header levels are skipped: H1 to H3"},
		{"hierarchy ok", newHeaderHierarchy, "<h1>A</h1><h2>B</h2><h3>C</h3><h2>D</h2>", nil, check.StatusPass, "4 headings"},

		// images
		{"no images alt", newImageAltText, "<p>x</p>", nil, "", ""},
		{"alt missing", newImageAltText, `<img src="a.png" alt="A"><img src="b.png">`, nil, check.StatusFail, "1 of 2 images missing alt text"},
		{"alt decorative", newImageAltText, `<img src="a.png" alt="">`, nil, check.StatusPass, "All 1 image have alt text"},
		{"no images srcset", newResponsiveImages, "<p>x</p>", nil, "", ""},
		{"srcset", newResponsiveImages, `<img src="a.png" srcset="a-2x.png 2x">`, nil, check.StatusPass, "Page uses responsive images"},
		{"picture", newResponsiveImages, `<picture><source srcset="a.webp"><img src="a.png"></picture>`, nil, check.StatusPass, "Page uses responsive images"},
		{"no srcset", newResponsiveImages, `<img src="a.png">`, nil, check.StatusWarning, "No responsive images detected"},

		// links
		{"few internal links", newInternalLinks, anchors(2), nil, check.StatusWarning, "Only 2 internal links found"},
		{"internal links ok", newInternalLinks, anchors(6), nil, check.StatusPass, "Page has 6 internal links"},
		{"too many internal links", newInternalLinks, anchors(101), nil, check.StatusWarning, "Too many internal links (101)"},
		{"nofollow no links", newNofollowLinks, "<p>x</p>", nil, "", ""},
		{"nofollow internal", newNofollowLinks, `<a href="/b" rel="nofollow">b</a>`, nil, check.StatusWarning, "1 internal links are nofollowed"},
		{"nofollow external only", newNofollowLinks, `<a href="https://other.org/" rel="nofollow">o</a><a href="/b">b</a>`, nil, check.StatusPass, "No internal links are nofollowed"},
		{"blank unsafe", newExternalLinkSecurity, `<a href="https://other.org/" target="_blank">o</a>`, nil, check.StatusFail, `1/1 target="_blank" links lack security attributes`},
		{"blank safe", newExternalLinkSecurity, `<a href="https://other.org/" target="_blank" rel="noopener">o</a>`, nil, check.StatusPass, "noopener"},
		{"no blank links", newExternalLinkSecurity, `<a href="/b" target="_blank">b</a>`, nil, "", ""},

		// content
		{"thin content", newContentWordCount, "<p>a few words</p>", nil, check.StatusWarning, "Thin content detected"},
		{"enough content", newContentWordCount, "<p>" + strings.Repeat("word ", 300) + "</p>", nil, check.StatusPass, "Page has 300 words of content"},

		// performance
		{"load not measured", newPageLoadTime, "<p>x</p>", nil, "", ""},
		{"load fast", newPageLoadTime, "<p>x</p>", func(p *page.Content) { p.StaticLoadTime = time.Second }, check.StatusPass, "Page loads in 1.00 seconds"},
		{"load ok", newPageLoadTime, "<p>x</p>", func(p *page.Content) { p.StaticLoadTime = 4 * time.Second }, check.StatusWarning, "Page loads in 4.00 seconds"},
		{"load slow", newPageLoadTime, "<p>x</p>", func(p *page.Content) { p.StaticLoadTime = 6 * time.Second }, check.StatusFail, "Page loads slowly (6.00 seconds)"},
		{"rendered load wins", newPageLoadTime, "<p>x</p>", func(p *page.Content) {
			p.StaticLoadTime = time.Second
			p.RenderedLoadTime = 6 * time.Second
		}, check.StatusFail, "6.00 seconds"},
		{"gzip", newCompression, "<p>x</p>", withHeader("Content-Encoding", "gzip"), check.StatusPass, "Response is compressed (gzip)"},
		{"no compression", newCompression, "<p>x</p>", nil, check.StatusFail, "No compression detected"},
		{"no cache headers", newCacheHeaders, "<p>x</p>", nil, check.StatusWarning, "No caching headers found"},
		{"cache control", newCacheHeaders, "<p>x</p>", withHeader("Cache-Control", "max-age=3600"), check.StatusPass, "Caching headers are set"},
		{"no store", newCacheHeaders, "<p>x</p>", withHeader("Cache-Control", "no-store"), check.StatusInfo, "no-store"},
		{"expires", newCacheHeaders, "<p>x</p>", withHeader("Expires", "Wed, 21 Oct 2026 07:28:00 GMT"), check.StatusPass, "Expires"},

		// core web vitals
		{"lcp missing", newLCP, "<p>x</p>", nil, check.StatusInfo, "LCP measurement not available"},
		{"lcp good", newLCP, "<p>x</p>", withVital(page.VitalLCP, 2000), check.StatusPass, "LCP is good (2000ms)"},
		{"lcp boundary", newLCP, "<p>x</p>", withVital(page.VitalLCP, 2500), check.StatusPass, "LCP is good"},
		{"lcp improve", newLCP, "<p>x</p>", withVital(page.VitalLCP, 3000), check.StatusWarning, "LCP needs improvement (3000ms)"},
		{"lcp poor", newLCP, "<p>x</p>", withVital(page.VitalLCP, 5000), check.StatusFail, "LCP is poor (5000ms)"},
		{"fcp improve", newFCP, "<p>x</p>", withVital(page.VitalFCP, 2500), check.StatusWarning, "FCP needs improvement (2500ms)"},
		{"cls missing", newCLS, "<p>x</p>", nil, check.StatusInfo, "CLS measurement not available"},
		{"cls good", newCLS, "<p>x</p>", withVital(page.VitalCLS, 0.05), check.StatusPass, "CLS is good (0.050)"},
		{"cls poor", newCLS, "<p>x</p>", withVital(page.VitalCLS, 0.3), check.StatusFail, "CLS is poor (0.300)"},

		// accessibility
		{"lang present", newLangAttribute, `<html lang="en"><body>x</body></html>`, nil, check.StatusPass, "Page language is declared (en)"},
		{"lang missing", newLangAttribute, "<p>x</p>", nil, check.StatusFail, "Missing HTML lang attribute"},

		// mobile
		{"viewport missing", newViewport, "<p>x</p>", nil, check.StatusFail, "Missing viewport meta tag"},
		{"viewport ok", newViewport, `<meta name="viewport" content="width=device-width, initial-scale=1">`, nil, check.StatusPass, "configured for mobile"},
		{"viewport fixed", newViewport, `<meta name="viewport" content="width=1024">`, nil, check.StatusWarning, "fixed width"},
		{"viewport no zoom", newViewport, `<meta name="viewport" content="width=device-width, user-scalable=no">`, nil, check.StatusWarning, "prevents zooming"},
		{"viewport max scale", newViewport, `<meta name="viewport" content="width=device-width, maximum-scale=1">`, nil, check.StatusWarning, "prevents zooming"},

		// security
		{"no security headers", newSecurityHeaders, "<p>x</p>", nil, check.StatusFail, "No security headers found"},
		{"some security headers", newSecurityHeaders, "<p>x</p>", withHeader("X-Frame-Options", "DENY"), check.StatusWarning, "1 of 4 security headers present"},
		{"security headers", newSecurityHeaders, "<p>x</p>", func(p *page.Content) {
			p.Headers.Set("X-Frame-Options", "DENY")
			p.Headers.Set("X-Content-Type-Options", "nosniff")
			p.Headers.Set("Strict-Transport-Security", "max-age=31536000")
		}, check.StatusPass, "3 of 4 security headers present"},
		{"no cookies", newCookieFlags, "<p>x</p>", nil, "", ""},
		{"cookies flagged", newCookieFlags, "<p>x</p>", withHeader("Set-Cookie", "sid=1; Secure; HttpOnly; SameSite=Lax"), check.StatusPass, "recommended security flags"},
		{"cookies mostly flagged", newCookieFlags, "<p>x</p>", withHeader("Set-Cookie", "sid=1; Secure; HttpOnly"), check.StatusPass, "recommended security flags"},
		{"cookies bare", newCookieFlags, "<p>x</p>", withHeader("Set-Cookie", "sid=1"), check.StatusWarning, "Cookies missing flags: Secure, HttpOnly, SameSite"},
		{"one bare cookie", newCookieFlags, "<p>x</p>", func(p *page.Content) {
			p.Headers.Add("Set-Cookie", "a=1; Secure; HttpOnly; SameSite=Strict")
			p.Headers.Add("Set-Cookie", "b=2; Secure")
		}, check.StatusWarning, "Cookies missing flags: HttpOnly, SameSite"},

		// structured data
		{"no schema", newStructuredData, "<p>x</p>", nil, check.StatusWarning, "No schema markup found"},
		{"json-ld", newStructuredData, `<script type="application/ld+json">{"@type":"Organization","name":"Acme"}</script>`, nil, check.StatusPass, "Found 1 structured data block"},
		{"json-ld broken", newStructuredData, `<script type="application/ld+json">{"@type":</script>`, nil, check.StatusFail, "1 of 1 JSON-LD blocks are not valid JSON"},
		{"microdata", newStructuredData, `<div itemscope itemtype="https://schema.org/Person"><span itemprop="name">A</span></div>`, nil, check.StatusPass, "Found 1 structured data block"},

		// international
		{"no hreflang", newHreflang, "<p>x</p>", nil, check.StatusInfo, "No hreflang tags found"},
		{"hreflang ok", newHreflang, `<link rel="alternate" hreflang="en" href="/en"><link rel="alternate" hreflang="en-GB" href="/gb"><link rel="alternate" hreflang="x-default" href="/">`, nil, check.StatusPass, "Found 3 hreflang tags"},
		{"hreflang invalid", newHreflang, `<link rel="alternate" hreflang="english" href="/en">`, nil, check.StatusWarning, "1 hreflang code is invalid"},

		// technical
		{"status ok", newHTTPStatus, "<p>x</p>", nil, check.StatusPass, "Page responds successfully"},
		{"status 404", newHTTPStatus, "<p>x</p>", func(p *page.Content) { p.StatusCode = http.StatusNotFound }, check.StatusFail, "Client error (404)"},
		{"status 503", newHTTPStatus, "<p>x</p>", func(p *page.Content) { p.StatusCode = http.StatusServiceUnavailable }, check.StatusFail, "Server error (503)"},
		{"redirect chain", newHTTPStatus, "<p>x</p>", func(p *page.Content) { p.Redirects = []string{"/1", "/2", "/3"} }, check.StatusWarning, "chain of 3 redirects"},
		{"url clean", newURLStructure, "<p>x</p>", nil, check.StatusPass, "URL is clean and readable"},
		{"url messy", newURLStructure, "<p>x</p>", func(p *page.Content) { p.URL = "https://example.com/Some_Page" }, check.StatusWarning, "URL structure issues: uppercase, underscores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPage(t, pageURL, tt.body, nil)
			if tt.setup != nil {
				tt.setup(p)
			}
			c := tt.check(Options{})

			results := execute(t, c, p, nil)
			if tt.status == "" {
				assert.Empty(t, results)
				return
			}
			require.Len(t, results, 1)
			assert.Equal(t, tt.status, results[0].Status, results[0].Message)
			assert.Contains(t, results[0].Message, tt.message)
			assert.Equal(t, c.Severity(), results[0].Severity)
		})
	}
}

func TestChecksDoNotMutatePage(t *testing.T) {
	body := `<html lang="en"><head><title>Home</title></head><body><h1>Home</h1><img src="a.png"></body></html>`
	p := newPage(t, pageURL, body, http.Header{"Cache-Control": {"max-age=60"}})
	before := *p.Extract()
	headers := p.Headers.Clone()

	for _, c := range All(Options{}) {
		_, err := c.Execute(p, nil)
		require.NoError(t, err, c.ID())
	}

	assert.Equal(t, before, *p.Extract())
	assert.Equal(t, headers, p.Headers)
	assert.Equal(t, pageURL, p.URL)
}
