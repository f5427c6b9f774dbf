// Package report turns audit results into XLSX, CSV and JSON files.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/storage"
)

// Tool is written into every export's metadata.
const Tool = "SEO Audit"

// Report is everything an export needs about one audit.
type Report struct {
	AuditID   string
	RootURL   string
	Generated time.Time
	Stats     check.Stats
	Results   []check.Result
	Pages     []storage.Page

	// Set by WithSite for crawled audits
	Graph      *crawlctx.GraphStats
	Depths     []crawlctx.DepthBucket
	Duplicates map[string][]string // fingerprint -> URLs sharing it
}

// New builds a report from in-memory results.
func New(auditID, rootURL string, results []check.Result, pages []storage.Page) *Report {
	return &Report{
		AuditID:   auditID,
		RootURL:   rootURL,
		Generated: time.Now().UTC(),
		Stats:     check.Summarize(results),
		Results:   results,
		Pages:     pages,
	}
}

// WithSite adds the link graph summary of site. A nil site leaves r as is.
func (r *Report) WithSite(site *crawlctx.CrawlContext) *Report {
	if site == nil {
		return r
	}
	stats := site.GraphStats()
	r.Graph = &stats
	r.Depths = site.DepthDistribution()
	if dups := site.DuplicateClusters(); len(dups) > 0 {
		r.Duplicates = dups
	}
	return r
}

// Generator rebuilds reports of stored audits.
type Generator struct {
	db *storage.Database
}

// NewGenerator creates a new report generator.
func NewGenerator(db *storage.Database) *Generator {
	return &Generator{db: db}
}

// Generate loads audit id and everything recorded for it.
func (g *Generator) Generate(ctx context.Context, id string) (*Report, error) {
	a, err := g.db.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := g.db.GetResults(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	pages, err := g.db.GetPages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	links, err := g.db.GetLinks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}

	r := New(a.ID, a.RootURL, results, pages).WithSite(rebuildSite(a.RootURL, pages, links))
	if a.CompletedAt != nil {
		r.Generated = *a.CompletedAt
	}
	return r, nil
}

// rebuildSite restores the crawl graph of a stored audit. Audits without
// links were single-page analyses and have none.
func rebuildSite(rootURL string, pages []storage.Page, links []crawlctx.LinkEdge) *crawlctx.CrawlContext {
	if len(links) == 0 {
		return nil
	}
	// The stored root URL is the seed as given; the graph key is the page
	// at depth 0.
	for _, p := range pages {
		if p.Depth == 0 {
			rootURL = p.URL
			break
		}
	}
	site := crawlctx.New(rootURL)
	for _, p := range pages {
		site.AddPage(p.PageRecord)
	}
	for _, e := range links {
		site.AddEdge(e)
	}
	site.Finalize()
	return site
}

// Issue is one check with the number of pages it failed or warned on.
type Issue struct {
	CheckID   string         `json:"check_id"`
	CheckName string         `json:"check_name"`
	Category  check.Category `json:"category"`
	Severity  check.Severity `json:"severity"`
	Failures  int            `json:"failures"`
	Warnings  int            `json:"warnings"`
}

var severityRank = map[check.Severity]int{
	check.SeverityCritical: 0,
	check.SeverityHigh:     1,
	check.SeverityMedium:   2,
	check.SeverityLow:      3,
	check.SeverityInfo:     4,
}

// Issues groups failing and warning results by check, most severe first.
func (r *Report) Issues() []Issue {
	byID := make(map[string]*Issue)
	var order []string
	for _, res := range r.Results {
		if res.Status != check.StatusFail && res.Status != check.StatusWarning {
			continue
		}
		is, ok := byID[res.CheckID]
		if !ok {
			is = &Issue{CheckID: res.CheckID, CheckName: res.CheckName, Category: res.Category, Severity: res.Severity}
			byID[res.CheckID] = is
			order = append(order, res.CheckID)
		}
		if res.Status == check.StatusFail {
			is.Failures++
		} else {
			is.Warnings++
		}
	}

	issues := make([]Issue, 0, len(order))
	for _, id := range order {
		issues = append(issues, *byID[id])
	}
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		return a.Failures > b.Failures
	})
	return issues
}

// Filter returns a copy of r holding only results with one of statuses.
func (r *Report) Filter(statuses ...check.Status) *Report {
	if len(statuses) == 0 {
		return r
	}
	keep := make(map[check.Status]bool, len(statuses))
	for _, s := range statuses {
		keep[s] = true
	}
	out := *r
	out.Results = nil
	for _, res := range r.Results {
		if keep[res.Status] {
			out.Results = append(out.Results, res)
		}
	}
	return &out
}

// PageColumns is the header row of the pages export.
var PageColumns = []string{
	"URL", "Status Code", "Title", "H1", "Word Count", "Indexable",
	"Depth", "Inlinks", "Outlinks", "External Links", "Orphan", "Duplicates",
}

func pageRow(p storage.Page) []any {
	return []any{
		p.URL, p.StatusCode, p.Title, p.H1, p.WordCount, yesNo(p.Indexable),
		p.Depth, p.InLinks, p.OutLinks, p.ExternalLinks, yesNo(p.Orphan), p.Duplicates,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
