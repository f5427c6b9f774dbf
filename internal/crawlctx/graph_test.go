package crawlctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkGraph(t *testing.T) {
	g := NewLinkGraph()
	g.Add(LinkEdge{Source: root, Target: pgB, IsInternal: true})
	g.Add(LinkEdge{Source: root, Target: pgA, IsInternal: true})
	g.Add(LinkEdge{Source: root, Target: pgA, IsInternal: true, IsNofollow: true})
	g.Add(LinkEdge{Source: root, Target: "https://other.org/", IsNofollow: true})
	g.Add(LinkEdge{Source: pgA, Target: pgA, IsInternal: true})

	assert.Equal(t, 5, g.EdgeCount())
	assert.Equal(t, []string{pgA, pgB}, g.Successors(root))
	assert.Equal(t, []string{root}, g.Predecessors(pgA))
	assert.Equal(t, 2, g.OutDegree(root))
	assert.Equal(t, 0, g.OutDegree(pgA))
	assert.Equal(t, 1, g.ExternalOut(root))
	assert.Equal(t, 2, g.NofollowOut(root))
	assert.Len(t, g.EdgesFrom(root), 4)
	assert.Len(t, g.EdgesTo(pgA), 3)
	assert.Empty(t, g.Successors("missing"))

	edges := g.Edges()
	edges[0].Target = "mutated"
	assert.Equal(t, pgB, g.Edges()[0].Target)
}
