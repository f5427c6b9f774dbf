// Package sitemap reads XML sitemaps and sitemap indexes so pages that no
// link reaches can still join the crawl.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logger"
)

// ErrUnknownFormat is returned for XML that is neither a urlset nor a
// sitemap index.
var ErrUnknownFormat = errors.New("not a sitemap")

const (
	// DefaultMaxSitemaps bounds how many sitemap files one Collect reads.
	DefaultMaxSitemaps = 50
	// DefaultMaxURLs is the protocol's per-file limit.
	DefaultMaxURLs = 50000
)

// URL is one <url> entry.
type URL struct {
	Loc        string     `json:"loc"`
	LastMod    *time.Time `json:"lastmod,omitempty"`
	ChangeFreq string     `json:"changefreq,omitempty"`
	Priority   string     `json:"priority,omitempty"`
}

// Document is a parsed sitemap. An index has Sitemaps and no URLs.
type Document struct {
	Index    bool
	URLs     []URL
	Sitemaps []string
}

type xmlDocument struct {
	XMLName  xml.Name
	URLs     []xmlURL `xml:"url"`
	Sitemaps []xmlURL `xml:"sitemap"`
}

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Parse decodes a urlset or sitemap index, gunzipping it first when needed.
func Parse(body []byte) (*Document, error) {
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap: %w", err)
		}
		defer gz.Close()
		if body, err = io.ReadAll(gz); err != nil {
			return nil, fmt.Errorf("gunzip sitemap: %w", err)
		}
	}

	var raw xmlDocument
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	doc := &Document{}
	switch raw.XMLName.Local {
	case "urlset":
		doc.URLs = make([]URL, 0, len(raw.URLs))
		for _, u := range raw.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc == "" {
				continue
			}
			doc.URLs = append(doc.URLs, URL{
				Loc:        loc,
				LastMod:    parseLastMod(u.LastMod),
				ChangeFreq: strings.TrimSpace(u.ChangeFreq),
				Priority:   strings.TrimSpace(u.Priority),
			})
		}
	case "sitemapindex":
		doc.Index = true
		for _, s := range raw.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				doc.Sitemaps = append(doc.Sitemaps, loc)
			}
		}
	default:
		return nil, fmt.Errorf("%w: root element <%s>", ErrUnknownFormat, raw.XMLName.Local)
	}
	return doc, nil
}

// parseLastMod accepts W3C datetimes and plain dates.
func parseLastMod(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Fetcher retrieves sitemap files.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Reader fetches sitemaps and follows indexes.
type Reader struct {
	fetch       Fetcher
	log         logger.Logger
	MaxSitemaps int
	MaxURLs     int
}

// NewReader creates a reader that fetches through f.
func NewReader(f Fetcher, log logger.Logger) *Reader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reader{fetch: f, log: log, MaxSitemaps: DefaultMaxSitemaps, MaxURLs: DefaultMaxURLs}
}

// Collect reads the given sitemaps and every sitemap their indexes list,
// breadth-first, and returns the page entries without duplicate locations.
// Unreadable sitemaps are logged and skipped; only a cancelled ctx fails.
func (r *Reader) Collect(ctx context.Context, locations []string) ([]URL, error) {
	queue := append([]string(nil), locations...)
	seenSitemaps := make(map[string]bool, len(queue))
	for _, l := range queue {
		seenSitemaps[l] = true
	}
	seenURLs := make(map[string]bool)
	var out []URL

	for read := 0; len(queue) > 0 && read < r.MaxSitemaps; read++ {
		loc := queue[0]
		queue = queue[1:]

		doc, err := r.read(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn("Skipping sitemap", logger.String("url", loc), logger.Error(err))
			continue
		}

		for _, child := range doc.Sitemaps {
			if !seenSitemaps[child] {
				seenSitemaps[child] = true
				queue = append(queue, child)
			}
		}
		for _, u := range doc.URLs {
			if seenURLs[u.Loc] {
				continue
			}
			if len(out) >= r.MaxURLs {
				r.log.Warn("Sitemap URL limit reached", logger.Int("limit", r.MaxURLs))
				return out, nil
			}
			seenURLs[u.Loc] = true
			out = append(out, u)
		}
		r.log.Debug("Read sitemap",
			logger.String("url", loc),
			logger.Bool("index", doc.Index),
			logger.Int("urls", len(doc.URLs)),
		)
	}
	return out, nil
}

func (r *Reader) read(ctx context.Context, loc string) (*Document, error) {
	resp, err := r.fetch.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}
