// Package page holds everything the fetch and render layers captured about a
// single URL, in the shape the checks consume.
package page

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/spider-crawler/seoaudit/internal/crawlctx"
)

// Core Web Vitals keys. LCP and FCP are milliseconds, CLS is unitless.
const (
	VitalLCP = "lcp"
	VitalFCP = "fcp"
	VitalCLS = "cls"
)

// AxeViolation is one failed axe-core rule.
type AxeViolation struct {
	ID          string `json:"id"`
	Impact      string `json:"impact"` // minor, moderate, serious, critical
	Description string `json:"description"`
	Help        string `json:"help"`
	HelpURL     string `json:"helpUrl"`
	Nodes       int    `json:"nodes"`
}

// AxeReport is the condensed outcome of one axe-core run.
type AxeReport struct {
	Violations   []AxeViolation `json:"violations"`
	Passes       int            `json:"passes"`
	Incomplete   int            `json:"incomplete"`
	Inapplicable int            `json:"inapplicable"`
}

// Content is the per-URL bundle handed to every check. It is built once by the
// fetch layer and must be treated as read-only afterwards.
type Content struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Redirects  []string

	StaticHTML   string
	RenderedHTML string

	StaticLoadTime   time.Duration
	RenderedLoadTime time.Duration

	// WebVitals is empty unless the page was rendered.
	WebVitals map[string]float64

	// Axe holds a scan taken during rendering, if any.
	Axe *AxeReport

	static   *goquery.Document
	rendered *goquery.Document
	extract  *Extract
	parser   *Parser
}

// NewContent parses body and returns the bundle for url.
func NewContent(url string, statusCode int, headers http.Header, body string) (*Content, error) {
	p, err := NewParser(url)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", url, err)
	}
	return newContent(p, url, statusCode, headers, body)
}

// NewContentWithParser is NewContent with a caller-configured parser, used when
// the internal/external split must honour a subdomain policy.
func NewContentWithParser(p *Parser, url string, statusCode int, headers http.Header, body string) (*Content, error) {
	return newContent(p, url, statusCode, headers, body)
}

func newContent(p *Parser, url string, statusCode int, headers http.Header, body string) (*Content, error) {
	if headers == nil {
		headers = make(http.Header)
	}

	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	c := &Content{
		URL:        url,
		FinalURL:   url,
		StatusCode: statusCode,
		Headers:    headers,
		StaticHTML: body,
		WebVitals:  make(map[string]float64),
		static:     goquery.NewDocumentFromNode(root),
		extract:    p.Extract(root),
		parser:     p,
	}
	return c, nil
}

// SetRendered attaches the JavaScript-rendered DOM and its measurements.
func (c *Content) SetRendered(body string, loadTime time.Duration, vitals map[string]float64) error {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse rendered %s: %w", c.URL, err)
	}
	c.RenderedHTML = body
	c.RenderedLoadTime = loadTime
	c.rendered = goquery.NewDocumentFromNode(root)
	// extracted facts follow the DOM a browser would index
	c.extract = c.parser.Extract(root)
	for k, v := range vitals {
		c.WebVitals[k] = v
	}
	return nil
}

// Doc returns the rendered DOM when present, otherwise the static one.
func (c *Content) Doc() *goquery.Document {
	if c.rendered != nil {
		return c.rendered
	}
	return c.static
}

// IsRendered reports whether a rendered DOM is attached.
func (c *Content) IsRendered() bool { return c.rendered != nil }

// Extract returns the facts parsed from Doc.
func (c *Content) Extract() *Extract { return c.extract }

// Header returns the first value of a response header, case-insensitively.
func (c *Content) Header(name string) string {
	return c.Headers.Get(name)
}

// HeaderValues returns every value of a response header.
func (c *Content) HeaderValues(name string) []string {
	return c.Headers.Values(name)
}

// Vital looks up a Core Web Vitals measurement.
func (c *Content) Vital(name string) (float64, bool) {
	v, ok := c.WebVitals[name]
	return v, ok
}

// LoadTime returns the rendered load time when known, otherwise the static one.
func (c *Content) LoadTime() time.Duration {
	if c.RenderedLoadTime > 0 {
		return c.RenderedLoadTime
	}
	return c.StaticLoadTime
}

// Indexable reports whether search engines may index the page.
func (c *Content) Indexable() bool {
	if c.StatusCode < 200 || c.StatusCode >= 300 {
		return false
	}
	if HasDirective(c.extract.MetaRobots, "noindex") {
		return false
	}
	return !HasDirective(c.Header("X-Robots-Tag"), "noindex")
}

// Record returns the crawl graph snapshot of this page.
func (c *Content) Record() crawlctx.PageRecord {
	e := c.extract
	h1 := ""
	if len(e.H1) > 0 {
		h1 = e.H1[0]
	}
	return crawlctx.PageRecord{
		URL:                c.URL,
		StatusCode:         c.StatusCode,
		Title:              e.Title,
		H1:                 h1,
		WordCount:          e.WordCount,
		ContentFingerprint: e.Fingerprint,
		Indexable:          c.Indexable(),
	}
}

// HasDirective reports whether a comma-separated robots directive list
// contains directive. "none" implies both noindex and nofollow.
func HasDirective(value, directive string) bool {
	for _, d := range strings.Split(strings.ToLower(value), ",") {
		d = strings.TrimSpace(d)
		if d == directive {
			return true
		}
		if d == "none" && (directive == "noindex" || directive == "nofollow") {
			return true
		}
	}
	return false
}
