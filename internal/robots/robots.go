// Package robots answers whether the crawler may fetch a URL under the
// site's robots.txt and which sitemaps the file declares.
package robots

import (
	"context"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logger"
)

// Fetcher retrieves robots.txt files.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// rules is what one origin's robots.txt resolved to. A nil group allows
// everything.
type rules struct {
	group    *robotstxt.Group
	sitemaps []string
}

// Checker loads robots.txt once per origin and tests URLs against the group
// matching its user agent. Unreadable files allow everything.
type Checker struct {
	fetch     Fetcher
	userAgent string
	log       logger.Logger

	mu    sync.RWMutex
	rules map[string]*rules
	loads singleflight.Group
}

// NewChecker creates a checker that fetches through f.
func NewChecker(f Fetcher, userAgent string, log logger.Logger) *Checker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{
		fetch:     f,
		userAgent: userAgent,
		log:       log,
		rules:     make(map[string]*rules),
	}
}

// Allowed reports whether rawURL may be crawled.
func (c *Checker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	r := c.load(ctx, origin(u))
	if r.group == nil {
		return true
	}
	return r.group.Test(u.RequestURI())
}

// Sitemaps returns the Sitemap: URLs declared by the robots.txt of
// rawURL's origin.
func (c *Checker) Sitemaps(ctx context.Context, rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return c.load(ctx, origin(u)).sitemaps
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func (c *Checker) cached(origin string) (*rules, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[origin]
	return r, ok
}

func (c *Checker) load(ctx context.Context, origin string) *rules {
	if r, ok := c.cached(origin); ok {
		return r
	}
	v, _, _ := c.loads.Do(origin, func() (any, error) {
		if r, ok := c.cached(origin); ok {
			return r, nil
		}
		r, done := c.fetchRules(ctx, origin)
		if done {
			c.mu.Lock()
			c.rules[origin] = r
			c.mu.Unlock()
		}
		return r, nil
	})
	return v.(*rules)
}

// fetchRules fetches and parses origin's robots.txt. done is false when ctx
// ended first, so a later call tries again.
func (c *Checker) fetchRules(ctx context.Context, origin string) (r *rules, done bool) {
	robotsURL := origin + "/robots.txt"
	resp, err := c.fetch.Fetch(ctx, robotsURL)
	if err != nil {
		return &rules{}, false
	}
	if resp.Error != nil {
		c.log.Warn("robots.txt unavailable, allowing all", logger.String("url", robotsURL), logger.Error(resp.Error))
		return &rules{}, true
	}
	// 5xx would disallow the whole site; an audit keeps going instead.
	if resp.StatusCode >= 500 {
		c.log.Warn("robots.txt server error, allowing all",
			logger.String("url", robotsURL), logger.Int("status", resp.StatusCode))
		return &rules{}, true
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		c.log.Warn("Unparseable robots.txt, allowing all", logger.String("url", robotsURL), logger.Error(err))
		return &rules{}, true
	}
	c.log.Debug("Loaded robots.txt",
		logger.String("url", robotsURL),
		logger.Int("status", resp.StatusCode),
		logger.Int("sitemaps", len(data.Sitemaps)),
	)
	return &rules{group: data.FindGroup(c.userAgent), sitemaps: data.Sitemaps}, true
}
