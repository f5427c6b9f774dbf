package crawlctx

import (
	"sort"
	"sync"
)

// Unreachable is the depth reported for URLs the breadth-first walk from the
// root never visited, and for every URL before Finalize has run.
const Unreachable = -1

// PageRecord is the immutable snapshot of one crawled page.
type PageRecord struct {
	URL                string `json:"url"`
	StatusCode         int    `json:"status_code"`
	Title              string `json:"title,omitempty"`
	H1                 string `json:"h1,omitempty"`
	WordCount          int    `json:"word_count"`
	ContentFingerprint string `json:"content_fingerprint,omitempty"`
	Indexable          bool   `json:"indexable"`
}

// CrawlContext owns the link graph and the page set of one crawl, and caches
// the metrics derived from them.
//
// Pages and links are added while the crawl is assembled; Finalize then
// computes depth and orphan status. Adding a page or link after Finalize
// discards the derived state until Finalize runs again.
type CrawlContext struct {
	mu sync.RWMutex

	rootURL string
	pages   map[string]PageRecord
	graph   *LinkGraph

	// maintained as pages are added
	contentClusters map[string]urlSet
	titleClusters   map[string]urlSet
	h1Clusters      map[string]urlSet

	// populated by Finalize
	depth     map[string]int
	orphans   urlSet
	finalized bool
}

// New creates an empty crawl context rooted at rootURL.
func New(rootURL string) *CrawlContext {
	return &CrawlContext{
		rootURL:         rootURL,
		pages:           make(map[string]PageRecord),
		graph:           NewLinkGraph(),
		contentClusters: make(map[string]urlSet),
		titleClusters:   make(map[string]urlSet),
		h1Clusters:      make(map[string]urlSet),
		depth:           make(map[string]int),
		orphans:         make(urlSet),
	}
}

// RootURL returns the entry point of the crawl.
func (c *CrawlContext) RootURL() string {
	return c.rootURL
}

// AddPage inserts or replaces the page keyed by record.URL.
func (c *CrawlContext) AddPage(record PageRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.pages[record.URL]; ok {
		removeFromCluster(c.contentClusters, prev.ContentFingerprint, prev.URL)
		removeFromCluster(c.titleClusters, prev.Title, prev.URL)
		removeFromCluster(c.h1Clusters, prev.H1, prev.URL)
	}

	c.pages[record.URL] = record
	addToCluster(c.contentClusters, record.ContentFingerprint, record.URL)
	addToCluster(c.titleClusters, record.Title, record.URL)
	addToCluster(c.h1Clusters, record.H1, record.URL)
	c.invalidate()
}

// AddLink records a link from source to target. The target does not have to
// be a known page.
func (c *CrawlContext) AddLink(source, target, anchorText string, isInternal bool) {
	c.AddEdge(LinkEdge{
		Source:     source,
		Target:     target,
		AnchorText: anchorText,
		IsInternal: isInternal,
	})
}

// AddEdge records a fully described link observation.
func (c *CrawlContext) AddEdge(edge LinkEdge) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.graph.Add(edge)
	c.invalidate()
}

// invalidate drops derived state after a mutation. Caller holds mu.
func (c *CrawlContext) invalidate() {
	if !c.finalized {
		return
	}
	c.finalized = false
	c.depth = make(map[string]int)
	c.orphans = make(urlSet)
}

// Finalize recomputes page depths and the orphan set from the current pages
// and adjacency. It starts from scratch every time, so calling it twice on an
// unchanged graph yields the same state.
func (c *CrawlContext) Finalize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.depth = c.computeDepths()
	c.orphans = c.findOrphans()
	c.finalized = true
}

// computeDepths walks internal outbound edges breadth-first from the root.
// The root is seeded at depth 0 whether or not it is a known page.
func (c *CrawlContext) computeDepths() map[string]int {
	depth := make(map[string]int)
	if c.rootURL == "" {
		return depth
	}

	depth[c.rootURL] = 0
	queue := []string{c.rootURL}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range c.graph.Successors(current) {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[current] + 1
			queue = append(queue, next)
		}
	}

	return depth
}

// findOrphans returns every known page except the root with no inbound
// internal link. Reachability from the root plays no part.
func (c *CrawlContext) findOrphans() urlSet {
	orphans := make(urlSet)
	for url := range c.pages {
		if url == c.rootURL {
			continue
		}
		if c.graph.InDegree(url) == 0 {
			orphans[url] = struct{}{}
		}
	}
	return orphans
}

// IsFinalized reports whether derived metrics are current.
func (c *CrawlContext) IsFinalized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finalized
}

// PageDepth returns the number of internal-link hops from the root to url,
// or Unreachable if the walk never got there or Finalize has not run.
func (c *CrawlContext) PageDepth(url string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if d, ok := c.depth[url]; ok {
		return d
	}
	return Unreachable
}

// IsOrphan reports whether url is a known page, other than the root, that no
// page links to internally. False before Finalize.
func (c *CrawlContext) IsOrphan(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if url == c.rootURL {
		return false
	}
	_, ok := c.orphans[url]
	return ok
}

// InboundCount returns the number of distinct pages linking to url internally.
func (c *CrawlContext) InboundCount(url string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.InDegree(url)
}

// OutboundCount returns the number of distinct internal targets of url.
func (c *CrawlContext) OutboundCount(url string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.OutDegree(url)
}

// ExternalLinkCount returns the number of external links on url.
func (c *CrawlContext) ExternalLinkCount(url string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.ExternalOut(url)
}

// SimilarContentPages returns the URLs sharing a content fingerprint, sorted.
// Unknown or empty fingerprints yield an empty slice.
func (c *CrawlContext) SimilarContentPages(fingerprint string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return setKeys(c.contentClusters[fingerprint])
}

// PagesWithTitle returns the URLs whose title is exactly title, sorted.
func (c *CrawlContext) PagesWithTitle(title string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return setKeys(c.titleClusters[title])
}

// PagesWithH1 returns the URLs whose first H1 is exactly h1, sorted.
func (c *CrawlContext) PagesWithH1(h1 string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return setKeys(c.h1Clusters[h1])
}

// Successors returns the distinct internal targets linked from url, sorted.
// Self-links are not included.
func (c *CrawlContext) Successors(url string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Successors(url)
}

// Page looks up a page record.
func (c *CrawlContext) Page(url string) (PageRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pages[url]
	return p, ok
}

// PageCount returns the number of known pages.
func (c *CrawlContext) PageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// URLs returns every known page URL, sorted.
func (c *CrawlContext) URLs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	urls := make([]string, 0, len(c.pages))
	for url := range c.pages {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Edges returns a copy of every recorded link observation.
func (c *CrawlContext) Edges() []LinkEdge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Edges()
}

// EdgesFrom returns the link observations whose source is url.
func (c *CrawlContext) EdgesFrom(url string) []LinkEdge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.EdgesFrom(url)
}

// EdgesTo returns the link observations whose target is url.
func (c *CrawlContext) EdgesTo(url string) []LinkEdge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.EdgesTo(url)
}

// Orphans returns the orphan set computed by the last Finalize, sorted.
func (c *CrawlContext) Orphans() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return setKeys(c.orphans)
}

// Unreachable returns known pages the walk from the root never reached,
// sorted. Empty before Finalize.
func (c *CrawlContext) Unreachable() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.finalized {
		return []string{}
	}
	var urls []string
	for url := range c.pages {
		if _, ok := c.depth[url]; !ok {
			urls = append(urls, url)
		}
	}
	sort.Strings(urls)
	if urls == nil {
		return []string{}
	}
	return urls
}

// DuplicateClusters returns every content fingerprint shared by more than one
// page, with its sorted URLs.
func (c *CrawlContext) DuplicateClusters() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clusters := make(map[string][]string)
	for fp, urls := range c.contentClusters {
		if len(urls) > 1 {
			clusters[fp] = setKeys(urls)
		}
	}
	return clusters
}

func addToCluster(clusters map[string]urlSet, key, url string) {
	if key == "" {
		return
	}
	set, ok := clusters[key]
	if !ok {
		set = make(urlSet)
		clusters[key] = set
	}
	set[url] = struct{}{}
}

func removeFromCluster(clusters map[string]urlSet, key, url string) {
	set, ok := clusters[key]
	if !ok {
		return
	}
	delete(set, url)
	if len(set) == 0 {
		delete(clusters, key)
	}
}

func setKeys(set urlSet) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
