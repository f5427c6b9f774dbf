package crawlctx

import "sort"

// PageMetrics collects the graph-derived facts about one page.
type PageMetrics struct {
	URL         string `json:"url"`
	Depth       int    `json:"depth"`
	InLinks     int    `json:"in_links"`
	OutLinks    int    `json:"out_links"`
	ExternalOut int    `json:"external_out"`
	NofollowOut int    `json:"nofollow_out"`
	Orphan      bool   `json:"orphan"`
	Duplicates  int    `json:"duplicates"` // other pages sharing the fingerprint
}

// Metrics returns the derived metrics of url.
func (c *CrawlContext) Metrics(url string) PageMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := PageMetrics{
		URL:         url,
		Depth:       Unreachable,
		InLinks:     c.graph.InDegree(url),
		OutLinks:    c.graph.OutDegree(url),
		ExternalOut: c.graph.ExternalOut(url),
		NofollowOut: c.graph.NofollowOut(url),
	}
	if d, ok := c.depth[url]; ok {
		m.Depth = d
	}
	if url != c.rootURL {
		_, m.Orphan = c.orphans[url]
	}
	if p, ok := c.pages[url]; ok && p.ContentFingerprint != "" {
		if n := len(c.contentClusters[p.ContentFingerprint]); n > 1 {
			m.Duplicates = n - 1
		}
	}
	return m
}

// AllMetrics returns Metrics for every known page, sorted by URL.
func (c *CrawlContext) AllMetrics() []PageMetrics {
	urls := c.URLs()
	metrics := make([]PageMetrics, 0, len(urls))
	for _, url := range urls {
		metrics = append(metrics, c.Metrics(url))
	}
	return metrics
}

// DepthBucket is the number of pages found at one depth.
type DepthBucket struct {
	Depth    int     `json:"depth"`
	URLCount int     `json:"url_count"`
	Percent  float64 `json:"percent"`
}

// DepthDistribution buckets known pages by depth, shallowest first.
// Unreachable pages are reported in a bucket with Depth == Unreachable at the
// end. Empty before Finalize.
func (c *CrawlContext) DepthDistribution() []DepthBucket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.finalized {
		return []DepthBucket{}
	}

	counts := make(map[int]int)
	for url := range c.pages {
		d, ok := c.depth[url]
		if !ok {
			d = Unreachable
		}
		counts[d]++
	}

	depths := make([]int, 0, len(counts))
	for d := range counts {
		if d != Unreachable {
			depths = append(depths, d)
		}
	}
	sort.Ints(depths)
	if _, ok := counts[Unreachable]; ok {
		depths = append(depths, Unreachable)
	}

	total := len(c.pages)
	buckets := make([]DepthBucket, 0, len(depths))
	for _, d := range depths {
		b := DepthBucket{Depth: d, URLCount: counts[d]}
		if total > 0 {
			b.Percent = float64(counts[d]) / float64(total) * 100
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// GraphStats summarizes the internal link structure of the crawl.
type GraphStats struct {
	Pages       int     `json:"pages"`
	Edges       int     `json:"edges"`
	Orphans     int     `json:"orphans"`
	Unreachable int     `json:"unreachable"`
	DeadEnds    int     `json:"dead_ends"` // pages with no internal outbound link
	MaxDepth    int     `json:"max_depth"`
	AvgInLinks  float64 `json:"avg_in_links"`
	AvgOutLinks float64 `json:"avg_out_links"`
	MaxInLinks  int     `json:"max_in_links"`
	MaxOutLinks int     `json:"max_out_links"`
	Density     float64 `json:"density"`
	DupClusters int     `json:"duplicate_clusters"`
}

// GraphStats computes summary statistics over known pages.
func (c *CrawlContext) GraphStats() GraphStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := GraphStats{
		Pages:   len(c.pages),
		Edges:   c.graph.EdgeCount(),
		Orphans: len(c.orphans),
	}

	totalIn, totalOut, internalPairs := 0, 0, 0
	for url := range c.pages {
		in := c.graph.InDegree(url)
		out := c.graph.OutDegree(url)
		totalIn += in
		totalOut += out
		internalPairs += out

		if out == 0 {
			stats.DeadEnds++
		}
		if in > stats.MaxInLinks {
			stats.MaxInLinks = in
		}
		if out > stats.MaxOutLinks {
			stats.MaxOutLinks = out
		}
		if d, ok := c.depth[url]; ok {
			if d > stats.MaxDepth {
				stats.MaxDepth = d
			}
		} else if c.finalized {
			stats.Unreachable++
		}
	}

	for _, urls := range c.contentClusters {
		if len(urls) > 1 {
			stats.DupClusters++
		}
	}

	if stats.Pages > 0 {
		stats.AvgInLinks = float64(totalIn) / float64(stats.Pages)
		stats.AvgOutLinks = float64(totalOut) / float64(stats.Pages)
	}
	if maxPairs := stats.Pages * (stats.Pages - 1); maxPairs > 0 {
		stats.Density = float64(internalPairs) / float64(maxPairs)
	}
	return stats
}
