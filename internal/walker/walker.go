// Package walker expands a seed set of matched atoms into associated
// neighbors ranked by a composite gravity score blending tag overlap,
// temporal proximity and fingerprint similarity.
package walker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mnemo/internal/config"
	"mnemo/internal/logging"
	"mnemo/internal/store"
)

// Store is the subset of corpus access the walker needs.
type Store interface {
	AtomsByIDs(ctx context.Context, ids []string) ([]store.Atom, error)
	AtomsSharingTags(ctx context.Context, tags []string, excludeIDs []string, limit int) ([]store.Atom, error)
	AtomsNear(ctx context.Context, compoundID string, start, end, pad int, excludeIDs []string) ([]store.Atom, error)
	GetCompound(ctx context.Context, id string) (*store.Compound, error)
}

// Node is a walker-discovered neighbor. Nodes are ephemeral: they exist only
// for the duration of one walk call and are never persisted.
type Node struct {
	Atom       store.Atom `json:"atom"`
	Gravity    float64    `json:"gravity"`
	AnchorID   string     `json:"anchorId"`
	Connection string     `json:"connection"`
	Reason     string     `json:"reason"`
}

// Connection labels.
const (
	// ConnStrongBond marks high-gravity neighbors with heavy tag overlap
	ConnStrongBond = "strong_bond"
	// ConnTagWalk marks ordinary tag-association neighbors
	ConnTagWalk = "tag_walk"
)

const (
	// resolvedAnchorCap bounds molecule resolution output
	resolvedAnchorCap = 100
	// scoredAnchorCap bounds the anchors actually used for scoring
	scoredAnchorCap = 20
	// moleculeSlack widens a molecule's range during resolution
	moleculeSlack = 500
	// candidateFetchCap bounds raw candidate generation per walk
	candidateFetchCap = 200
)

// Walker computes gravity-ranked neighbors for anchor sets.
type Walker struct {
	store  Store
	cfg    config.WalkerConfig
	logger *logging.Logger
}

// New creates a Walker.
func New(st Store, cfg config.WalkerConfig, logger *logging.Logger) *Walker {
	return &Walker{store: st, cfg: cfg, logger: logger.Component("walker")}
}

// Walk expands the anchor ids into scored neighbors. Any store failure or
// timeout degrades to an empty neighbor list; the caller is never blocked
// past the configured deadline and never sees an error.
func (w *Walker) Walk(ctx context.Context, anchorIDs []string) []Node {
	if len(anchorIDs) == 0 {
		return nil
	}
	if len(anchorIDs) > w.cfg.MaxAnchors {
		anchorIDs = anchorIDs[:w.cfg.MaxAnchors]
	}

	deadline := time.Duration(w.cfg.TimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	nodes, err := w.bounded(ctx, func(ctx context.Context) ([]Node, error) {
		anchors, err := w.resolveAnchors(ctx, anchorIDs)
		if err != nil {
			return nil, err
		}
		if len(anchors) == 0 {
			return nil, nil
		}
		candidates, err := w.generateCandidates(ctx, anchors)
		if err != nil {
			return nil, err
		}
		return w.score(anchors, candidates), nil
	})
	if err != nil {
		w.logger.Warn("graph walk degraded to empty", map[string]interface{}{
			"anchors": len(anchorIDs),
			"error":   err.Error(),
		})
		return nil
	}
	return nodes
}

// WalkTags is the tag-seeded variant used when no atom anchors exist. It
// skips the gravity equation and ranks purely by shared-tag count.
func (w *Walker) WalkTags(ctx context.Context, tags []string) []Node {
	if len(tags) == 0 {
		return nil
	}

	deadline := time.Duration(w.cfg.TimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	nodes, err := w.bounded(ctx, func(ctx context.Context) ([]Node, error) {
		atoms, err := w.store.AtomsSharingTags(ctx, tags, nil, candidateFetchCap)
		if err != nil {
			return nil, err
		}

		seedSet := make(map[string]bool, len(tags))
		for _, t := range tags {
			seedSet[t] = true
		}

		var nodes []Node
		for _, a := range atoms {
			shared := a.SharedTags(seedSet)
			if shared == 0 {
				continue
			}
			nodes = append(nodes, Node{
				Atom:       a,
				Gravity:    float64(shared) * 0.1,
				Connection: ConnTagWalk,
				Reason:     fmt.Sprintf("shares %d tags with seed cloud", shared),
			})
		}
		sortNodes(nodes)
		if len(nodes) > w.cfg.MaxResults {
			nodes = nodes[:w.cfg.MaxResults]
		}
		return nodes, nil
	})
	if err != nil {
		w.logger.Warn("tag-seeded walk degraded to empty", map[string]interface{}{
			"tags":  len(tags),
			"error": err.Error(),
		})
		return nil
	}
	return nodes
}

// bounded races fn against the walk deadline. The result channel is buffered
// so an abandoned walk's eventual completion is discarded, never consumed.
func (w *Walker) bounded(ctx context.Context, fn func(context.Context) ([]Node, error)) ([]Node, error) {
	type outcome struct {
		nodes []Node
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		nodes, err := fn(ctx)
		ch <- outcome{nodes: nodes, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		return out.nodes, out.err
	}
}

// resolveAnchors maps anchor ids to atoms. Ids that do not name an atom are
// treated as molecule (compound) references and resolve to the atoms whose
// byte ranges overlap the molecule's range, widened by moleculeSlack.
func (w *Walker) resolveAnchors(ctx context.Context, anchorIDs []string) ([]store.Atom, error) {
	direct, err := w.store.AtomsByIDs(ctx, anchorIDs)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(direct))
	for _, a := range direct {
		found[a.ID] = true
	}

	resolved := direct
	for _, id := range anchorIDs {
		if found[id] {
			continue
		}
		compound, err := w.store.GetCompound(ctx, id)
		if err != nil {
			continue // neither atom nor molecule; skip
		}
		members, err := w.store.AtomsNear(ctx, compound.ID, 0, compound.BodyLen, moleculeSlack, nil)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if len(resolved) >= resolvedAnchorCap {
				break
			}
			if !found[m.ID] {
				found[m.ID] = true
				resolved = append(resolved, m)
			}
		}
	}

	if len(resolved) > scoredAnchorCap {
		resolved = resolved[:scoredAnchorCap]
	}
	return resolved, nil
}

// generateCandidates merges the two disjoint candidate sources: atoms
// sharing a tag with any anchor, and atoms physically adjacent to an
// anchor's byte range within the same compound.
func (w *Walker) generateCandidates(ctx context.Context, anchors []store.Atom) ([]store.Atom, error) {
	anchorIDs := make([]string, len(anchors))
	tagSet := map[string]bool{}
	for i, a := range anchors {
		anchorIDs[i] = a.ID
		for _, t := range a.Tags {
			tagSet[t] = true
		}
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	byID := map[string]store.Atom{}
	var order []string

	tagged, err := w.store.AtomsSharingTags(ctx, tags, anchorIDs, candidateFetchCap)
	if err != nil {
		return nil, err
	}
	for _, a := range tagged {
		if _, ok := byID[a.ID]; !ok {
			byID[a.ID] = a
			order = append(order, a.ID)
		}
	}

	for _, anchor := range anchors {
		if anchor.CompoundID == "" || !anchor.HasRange() {
			continue
		}
		near, err := w.store.AtomsNear(ctx, anchor.CompoundID,
			anchor.StartByte, anchor.EndByte, w.cfg.AdjacencyBytes, anchorIDs)
		if err != nil {
			return nil, err
		}
		for _, a := range near {
			if _, ok := byID[a.ID]; !ok {
				byID[a.ID] = a
				order = append(order, a.ID)
			}
		}
	}

	candidates := make([]store.Atom, 0, len(order))
	for _, id := range order {
		candidates = append(candidates, byID[id])
	}
	return candidates, nil
}

func sortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Gravity > nodes[j].Gravity
	})
}
