package crawler

import "sync"

// URLItem is a URL waiting to be fetched.
type URLItem struct {
	// Normalized URL; also the crawl graph key
	URL string

	// The page this was discovered on (empty for seeds)
	DiscoveredFrom string

	// Link distance from the nearest seed
	Depth int
}

// FrontierStats holds statistics about the frontier.
type FrontierStats struct {
	Queued      int
	Visited     int
	TotalAdded  int
	Duplicates  int
	Rejected    int
	DepthCounts map[int]int
}

// Frontier is a level-by-level BFS queue with deduplication and limits.
type Frontier struct {
	mu          sync.Mutex
	current     []*URLItem
	next        []*URLItem
	seen        map[string]struct{}
	maxDepth    int
	maxURLs     int
	totalAdded  int
	duplicates  int
	rejected    int
	visited     int
	depthCounts map[int]int
}

// NewFrontier creates a frontier. maxURLs <= 0 means unlimited.
func NewFrontier(maxDepth, maxURLs int) *Frontier {
	return &Frontier{
		seen:        make(map[string]struct{}),
		maxDepth:    maxDepth,
		maxURLs:     maxURLs,
		depthCounts: make(map[int]int),
	}
}

// Push queues item for the level after the current one. It reports false
// for duplicates and for items beyond the depth or URL limits.
func (f *Frontier) Push(item *URLItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[item.URL]; ok {
		f.duplicates++
		return false
	}
	if item.Depth > f.maxDepth || (f.maxURLs > 0 && f.totalAdded >= f.maxURLs) {
		f.rejected++
		return false
	}

	f.seen[item.URL] = struct{}{}
	f.next = append(f.next, item)
	f.totalAdded++
	f.depthCounts[item.Depth]++
	return true
}

// NextLevel returns the queued items in insertion order and starts a new
// level. It returns nil when the crawl is exhausted.
func (f *Frontier) NextLevel() []*URLItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.visited += len(f.current)
	f.current, f.next = f.next, nil
	return f.current
}

// Full reports whether the URL limit has been reached.
func (f *Frontier) Full() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxURLs > 0 && f.totalAdded >= f.maxURLs
}

// Stats returns frontier statistics.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[int]int, len(f.depthCounts))
	for d, n := range f.depthCounts {
		counts[d] = n
	}
	return FrontierStats{
		Queued:      len(f.current) + len(f.next),
		Visited:     f.visited,
		TotalAdded:  f.totalAdded,
		Duplicates:  f.duplicates,
		Rejected:    f.rejected,
		DepthCounts: counts,
	}
}
