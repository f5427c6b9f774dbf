// Package crawlctx provides the site-wide crawl graph and the derived metrics
// that cross-page checks query.
package crawlctx

// LinkEdge is one observed link from a source page to a target URL.
// Edges are never deduplicated: two links between the same pair of pages may
// carry different anchor text or rel attributes.
type LinkEdge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	AnchorText string `json:"anchor_text"`
	IsInternal bool   `json:"is_internal"`
	IsNofollow bool   `json:"is_nofollow"`
}

// urlSet is a set of URLs.
type urlSet map[string]struct{}

// LinkGraph is a directed multigraph of link observations. Internal edges
// also feed two adjacency sets (outbound and inbound) that are kept current
// as edges are appended.
type LinkGraph struct {
	edges    []LinkEdge
	outbound map[string]urlSet
	inbound  map[string]urlSet

	// per-source counters that include duplicates and external links
	externalOut map[string]int
	nofollowOut map[string]int
}

// NewLinkGraph creates an empty link graph.
func NewLinkGraph() *LinkGraph {
	return &LinkGraph{
		edges:       make([]LinkEdge, 0),
		outbound:    make(map[string]urlSet),
		inbound:     make(map[string]urlSet),
		externalOut: make(map[string]int),
		nofollowOut: make(map[string]int),
	}
}

// Add appends an edge. Self-loops are recorded in the edge list but never
// enter the adjacency sets.
func (g *LinkGraph) Add(edge LinkEdge) {
	g.edges = append(g.edges, edge)

	if edge.IsNofollow {
		g.nofollowOut[edge.Source]++
	}
	if !edge.IsInternal {
		g.externalOut[edge.Source]++
		return
	}
	if edge.Source == edge.Target {
		return
	}

	out, ok := g.outbound[edge.Source]
	if !ok {
		out = make(urlSet)
		g.outbound[edge.Source] = out
	}
	out[edge.Target] = struct{}{}

	in, ok := g.inbound[edge.Target]
	if !ok {
		in = make(urlSet)
		g.inbound[edge.Target] = in
	}
	in[edge.Source] = struct{}{}
}

// Edges returns a copy of the edge list in insertion order.
func (g *LinkGraph) Edges() []LinkEdge {
	edges := make([]LinkEdge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// EdgeCount returns the number of recorded edges, duplicates included.
func (g *LinkGraph) EdgeCount() int {
	return len(g.edges)
}

// EdgesFrom returns every edge whose source is url.
func (g *LinkGraph) EdgesFrom(url string) []LinkEdge {
	var edges []LinkEdge
	for _, e := range g.edges {
		if e.Source == url {
			edges = append(edges, e)
		}
	}
	return edges
}

// EdgesTo returns every edge whose target is url.
func (g *LinkGraph) EdgesTo(url string) []LinkEdge {
	var edges []LinkEdge
	for _, e := range g.edges {
		if e.Target == url {
			edges = append(edges, e)
		}
	}
	return edges
}

// Successors returns the internal targets linked from url.
func (g *LinkGraph) Successors(url string) []string {
	return setKeys(g.outbound[url])
}

// Predecessors returns the internal sources linking to url.
func (g *LinkGraph) Predecessors(url string) []string {
	return setKeys(g.inbound[url])
}

// OutDegree is the size of the internal outbound set of url.
func (g *LinkGraph) OutDegree(url string) int {
	return len(g.outbound[url])
}

// InDegree is the size of the internal inbound set of url.
func (g *LinkGraph) InDegree(url string) int {
	return len(g.inbound[url])
}

// ExternalOut counts external edges leaving url.
func (g *LinkGraph) ExternalOut(url string) int {
	return g.externalOut[url]
}

// NofollowOut counts nofollow edges leaving url.
func (g *LinkGraph) NofollowOut(url string) int {
	return g.nofollowOut[url]
}
