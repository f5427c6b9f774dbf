// Package pagespeed runs Lighthouse audits through the PageSpeed Insights API.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logger"
)

// Categories requested from Lighthouse.
var Categories = []string{"performance", "accessibility", "best-practices", "seo"}

const cacheSize = 512

// Report is the part of a Lighthouse result the audit uses.
type Report struct {
	URL      string `json:"url"`
	Strategy string `json:"strategy"`
	Version  string `json:"lighthouse_version"`
	// Category scores in [0, 1], keyed by Lighthouse category id
	Categories map[string]float64 `json:"categories"`
	Audits     []Audit            `json:"audits"`
}

// Audit is one Lighthouse audit outcome.
type Audit struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	DisplayValue string `json:"display_value,omitempty"`
	// Nil for informative and not-applicable audits
	Score *float64 `json:"score"`
}

// Below returns the scored audits under threshold, worst first.
func (r *Report) Below(threshold float64) []Audit {
	var out []Audit
	for _, a := range r.Audits {
		if a.Score != nil && *a.Score < threshold {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].Score != *out[j].Score {
			return *out[i].Score < *out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Client calls the PageSpeed Insights API. Reports are cached per URL and
// concurrent requests for the same URL share one call.
type Client struct {
	cfg     config.LighthouseConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache[string, *Report]
	calls   singleflight.Group
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.client.Transport = rt }
}

// New creates a client for cfg.
func New(cfg config.LighthouseConfig, opts ...Option) (*Client, error) {
	cache, err := lru.New[string, *Report](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		cfg:     cfg,
		client:  &http.Client{},
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run returns the Lighthouse report of pageURL.
func (c *Client) Run(ctx context.Context, pageURL string) (*Report, error) {
	if r, ok := c.cache.Get(pageURL); ok {
		return r, nil
	}
	v, err, _ := c.calls.Do(pageURL, func() (any, error) {
		r, err := c.fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		c.cache.Add(pageURL, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (c *Client) requestURL(pageURL string) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", pageURL)
	q.Set("strategy", c.cfg.Strategy)
	for _, cat := range Categories {
		q.Add("category", cat)
	}
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, pageURL string) (*Report, error) {
	endpoint, err := c.requestURL(pageURL)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("Running Lighthouse", logger.String("url", pageURL), logger.String("strategy", c.cfg.Strategy))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var body psiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if body.LighthouseResult == nil {
		return nil, errors.New("response has no Lighthouse result")
	}
	return body.LighthouseResult.report(pageURL, c.cfg.Strategy), nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, body.Error.Message)
	}
	return fmt.Errorf("API returned status %d", resp.StatusCode)
}

type psiResponse struct {
	LighthouseResult *lighthouseResult `json:"lighthouseResult"`
}

type lighthouseResult struct {
	Version    string                     `json:"lighthouseVersion"`
	Categories map[string]lighthouseScore `json:"categories"`
	Audits     map[string]lighthouseAudit `json:"audits"`
}

type lighthouseScore struct {
	Score *float64 `json:"score"`
}

type lighthouseAudit struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	DisplayValue string   `json:"displayValue"`
	Score        *float64 `json:"score"`
	ScoreMode    string   `json:"scoreDisplayMode"`
}

func (lr *lighthouseResult) report(pageURL, strategy string) *Report {
	r := &Report{
		URL:        pageURL,
		Strategy:   strategy,
		Version:    lr.Version,
		Categories: make(map[string]float64, len(lr.Categories)),
		Audits:     make([]Audit, 0, len(lr.Audits)),
	}
	for id, cat := range lr.Categories {
		if cat.Score != nil {
			r.Categories[id] = *cat.Score
		}
	}
	for id, a := range lr.Audits {
		if a.ID == "" {
			a.ID = id
		}
		score := a.Score
		// informative and manual audits carry a meaningless score
		if a.ScoreMode == "informative" || a.ScoreMode == "manual" || a.ScoreMode == "notApplicable" {
			score = nil
		}
		r.Audits = append(r.Audits, Audit{
			ID:           a.ID,
			Title:        strings.TrimSpace(a.Title),
			Description:  strings.TrimSpace(a.Description),
			DisplayValue: a.DisplayValue,
			Score:        score,
		})
	}
	sort.Slice(r.Audits, func(i, j int) bool { return r.Audits[i].ID < r.Audits[j].ID })
	return r
}
