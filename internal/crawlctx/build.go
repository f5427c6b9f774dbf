package crawlctx

// Link is one outbound link discovered on a crawled page.
type Link struct {
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
	Nofollow   bool   `json:"nofollow"`
}

// PageResult is what the crawler produced for one URL: the page snapshot
// plus the links found on it, already split by internal/external.
type PageResult struct {
	Record        PageRecord `json:"record"`
	InternalLinks []Link     `json:"internal_links"`
	ExternalLinks []Link     `json:"external_links"`
}

// Build assembles and finalizes a crawl context from crawler output.
// If rootURL is empty the first result's URL is used.
func Build(rootURL string, results []PageResult) *CrawlContext {
	if rootURL == "" && len(results) > 0 {
		rootURL = results[0].Record.URL
	}

	c := New(rootURL)

	// Pages go in first so every link source is known before edges are added.
	for _, r := range results {
		c.AddPage(r.Record)
	}

	for _, r := range results {
		src := r.Record.URL
		for _, l := range r.InternalLinks {
			c.AddEdge(LinkEdge{Source: src, Target: l.URL, AnchorText: l.AnchorText, IsInternal: true, IsNofollow: l.Nofollow})
		}
		for _, l := range r.ExternalLinks {
			c.AddEdge(LinkEdge{Source: src, Target: l.URL, AnchorText: l.AnchorText, IsInternal: false, IsNofollow: l.Nofollow})
		}
	}

	c.Finalize()
	return c
}
