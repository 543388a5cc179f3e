package retrieval

import (
	"context"
	"sort"
	"unicode/utf8"

	"mnemo/internal/store"
)

// Edge scoring for the illumination graph.
const (
	edgeTagWeight      = 2.0
	edgeBucketWeight   = 1.0
	edgeSameSource     = 5.0
	edgeDirectNeighbor = 10.0
	edgeNearNeighbor   = 3.0
	nearNeighborSpan   = 3
	maxEdgesPerNode    = 5
	nodeContentLimit   = 500
)

// GraphNode is one atom in the illumination graph, content truncated.
type GraphNode struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Score   float64  `json:"score"`
	Tags    []string `json:"tags,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// GraphEdge is a pairwise relationship between two result atoms.
type GraphEdge struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Score float64 `json:"score"`
}

// Graph is the node/edge view returned by Illuminate.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Meta  Meta        `json:"meta"`
}

// Illuminate runs a search and renders the result set as a graph: nodes are
// the top-scored atoms, edges score pairwise relationships by shared tags
// and buckets, same-source membership, and sequential adjacency. Each node
// keeps its top edges only.
func (e *Engine) Illuminate(ctx context.Context, query string, opts Options) *Graph {
	res := e.Search(ctx, query, opts)

	g := &Graph{Meta: res.Meta}
	for _, a := range res.Atoms {
		content := truncateRunes(a.Content, nodeContentLimit)
		g.Nodes = append(g.Nodes, GraphNode{
			ID:      a.ID,
			Content: content,
			Score:   a.Score,
			Tags:    a.Tags,
			Source:  a.Source,
		})
	}

	perNode := map[string][]GraphEdge{}
	for i := 0; i < len(res.Atoms); i++ {
		for j := i + 1; j < len(res.Atoms); j++ {
			score := edgeScore(&res.Atoms[i], &res.Atoms[j])
			if score <= 0 {
				continue
			}
			edge := GraphEdge{From: res.Atoms[i].ID, To: res.Atoms[j].ID, Score: score}
			perNode[edge.From] = append(perNode[edge.From], edge)
			perNode[edge.To] = append(perNode[edge.To], edge)
		}
	}

	// Keep the top edges per node, dropping duplicates across nodes.
	emitted := map[[2]string]bool{}
	for _, node := range g.Nodes {
		edges := perNode[node.ID]
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].Score > edges[j].Score
		})
		if len(edges) > maxEdgesPerNode {
			edges = edges[:maxEdgesPerNode]
		}
		for _, edge := range edges {
			key := [2]string{edge.From, edge.To}
			if emitted[key] {
				continue
			}
			emitted[key] = true
			g.Edges = append(g.Edges, edge)
		}
	}
	return g
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func edgeScore(a, b *store.Atom) float64 {
	var score float64

	bTags := map[string]bool{}
	for _, t := range b.Tags {
		bTags[t] = true
	}
	score += float64(a.SharedTags(bTags)) * edgeTagWeight

	bBuckets := map[string]bool{}
	for _, bk := range b.Buckets {
		bBuckets[bk] = true
	}
	for _, bk := range a.Buckets {
		if bBuckets[bk] {
			score += edgeBucketWeight
		}
	}

	if a.Source != "" && a.Source == b.Source {
		score += edgeSameSource
		if a.Seq != nil && b.Seq != nil {
			delta := *a.Seq - *b.Seq
			if delta < 0 {
				delta = -delta
			}
			switch {
			case delta == 1:
				score += edgeDirectNeighbor
			case delta <= nearNeighborSpan:
				score += edgeNearNeighbor
			}
		}
	}
	return score
}
