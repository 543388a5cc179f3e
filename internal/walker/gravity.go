package walker

import (
	"fmt"
	"math"

	"mnemo/internal/fingerprint"
	"mnemo/internal/store"
)

// Gravity model. For a candidate c and anchor a:
//
//	gravity = (sharedTags(c)*damping + physical(c,a)*0.1)
//	          * exp(-lambda * |t(c)-t(a)| / 1h)
//	          * (1 - hamming(fp(c), fp(a))/64)
//
// The candidate keeps the maximum over all anchors and remembers which anchor
// produced it. Malformed fingerprints score at maximal distance.

const (
	physicalWeight    = 0.1
	msPerHour         = 3_600_000.0
	strongBondGravity = 0.8
	strongBondTags    = 3
)

// score ranks candidates against the anchor set, drops those below the
// gravity threshold, and returns the top MaxResults sorted descending.
func (w *Walker) score(anchors []store.Atom, candidates []store.Atom) []Node {
	anchorTags := map[string]bool{}
	for _, a := range anchors {
		for _, t := range a.Tags {
			anchorTags[t] = true
		}
	}

	var nodes []Node
	for _, c := range candidates {
		shared := c.SharedTags(anchorTags)

		best := -1.0
		bestAnchor := ""
		for _, a := range anchors {
			g := w.gravity(&c, &a, shared)
			if g > best {
				best = g
				bestAnchor = a.ID
			}
		}
		if best <= w.cfg.GravityThreshold {
			continue
		}

		node := Node{
			Atom:     c,
			Gravity:  best,
			AnchorID: bestAnchor,
		}
		if best > strongBondGravity && shared >= strongBondTags {
			node.Connection = ConnStrongBond
			node.Reason = fmt.Sprintf("strong bond: shares %d tags with anchor %s", shared, bestAnchor)
		} else {
			node.Connection = ConnTagWalk
			node.Reason = fmt.Sprintf("shares %d tags with anchor %s", shared, bestAnchor)
		}
		nodes = append(nodes, node)
	}

	sortNodes(nodes)
	if len(nodes) > w.cfg.MaxResults {
		nodes = nodes[:w.cfg.MaxResults]
	}
	return nodes
}

func (w *Walker) gravity(c, a *store.Atom, sharedTags int) float64 {
	base := float64(sharedTags)*w.cfg.Damping + w.physicalBonus(c, a)*physicalWeight
	if base == 0 {
		return 0
	}

	deltaHours := math.Abs(float64(c.CreatedAt-a.CreatedAt)) / msPerHour
	decay := math.Exp(-w.cfg.Lambda * deltaHours)

	distance := fingerprint.ParseDistance(c.Fingerprint, a.Fingerprint)
	similarity := 1.0 - float64(distance)/float64(fingerprint.Width)

	return base * decay * similarity
}

// physicalBonus is 1 when the candidate and anchor belong to the same
// compound and their byte ranges lie within the configured adjacency
// distance of each other.
func (w *Walker) physicalBonus(c, a *store.Atom) float64 {
	if c.CompoundID == "" || c.CompoundID != a.CompoundID {
		return 0
	}
	if !c.HasRange() || !a.HasRange() {
		return 0
	}
	gap := w.cfg.AdjacencyBytes
	if c.StartByte < a.EndByte+gap && a.StartByte < c.EndByte+gap {
		return 1
	}
	return 0
}
