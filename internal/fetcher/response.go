// Package fetcher handles HTTP fetching with redirect tracking and header capture.
package fetcher

import (
	"net/http"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/page"
)

// Response is the result of fetching a URL.
type Response struct {
	// Original requested URL
	RequestURL string `json:"request_url"`

	// Final URL after redirects
	FinalURL string `json:"final_url"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`

	// Content-Type without parameters
	ContentType string `json:"content_type"`

	// Decoded body; Content-Encoding is kept in Headers
	Body      []byte `json:"body"`
	Truncated bool   `json:"truncated"`

	Redirects []RedirectHop `json:"redirects,omitempty"`

	TTFB         time.Duration `json:"ttfb"`
	ResponseTime time.Duration `json:"response_time"`
	FetchedAt    time.Time     `json:"fetched_at"`

	// Error is set when no usable response was received.
	Error     error `json:"-"`
	Retryable bool  `json:"-"`

	FromCache bool `json:"-"`
}

// RedirectHop is a single redirect in the chain.
type RedirectHop struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Location   string `json:"location"`
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the body should be parsed as HTML. A missing
// Content-Type is treated as HTML.
func (r *Response) IsHTML() bool {
	ct := r.ContentType
	return ct == "" || ct == "text/html" || ct == "application/xhtml+xml"
}

// RedirectURLs returns the URLs that redirected, in order.
func (r *Response) RedirectURLs() []string {
	if len(r.Redirects) == 0 {
		return nil
	}
	urls := make([]string, len(r.Redirects))
	for i, hop := range r.Redirects {
		urls[i] = hop.URL
	}
	return urls
}

// Content converts the response into the bundle checks consume. p must be
// a parser for FinalURL so relative links resolve where the browser would
// resolve them.
func (r *Response) Content(p *page.Parser) (*page.Content, error) {
	body := ""
	if r.IsHTML() {
		body = string(r.Body)
	}
	c, err := page.NewContentWithParser(p, r.RequestURL, r.StatusCode, r.Headers.Clone(), body)
	if err != nil {
		return nil, err
	}
	c.FinalURL = r.FinalURL
	c.Redirects = r.RedirectURLs()
	c.StaticLoadTime = r.ResponseTime
	return c, nil
}

func contentType(header string) string {
	if idx := strings.Index(header, ";"); idx != -1 {
		header = header[:idx]
	}
	return strings.ToLower(strings.TrimSpace(header))
}
