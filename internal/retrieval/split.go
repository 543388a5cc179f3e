package retrieval

import (
	"context"
	"sort"
	"sync"

	"mnemo/internal/store"
)

// maxSplitEntities bounds how many entities fan out into parallel searches.
const maxSplitEntities = 3

// SmartSearch is the adaptive entry point: it runs the iterative backoff
// search, returns immediately when that finds enough, and otherwise fans out
// one independent search per extracted entity, merging results by first-seen
// id. The strategy used is reported in the result's Meta.
func (e *Engine) SmartSearch(ctx context.Context, query string, opts Options) *Result {
	res := e.IterativeSearch(ctx, query, opts)
	if len(res.Atoms) >= e.cfg.Retrieval.SplitShortCircuit {
		res.Meta.Strategy = "standard"
		return res
	}

	entities := e.normalizer.TopEntities(query, maxSplitEntities)
	if len(entities) == 0 {
		res.Meta.Strategy = "shallow"
		return res
	}

	totalBudget := opts.MaxChars
	if totalBudget <= 0 {
		totalBudget = e.cfg.Retrieval.DefaultMaxChars
	}
	perEntity := opts
	perEntity.MaxChars = totalBudget / len(entities)

	// One independent search per entity, concurrently. Results land in a
	// slice indexed by entity so the merge below walks them in the stable
	// extraction order regardless of completion order.
	results := make([]*Result, len(entities))
	var wg sync.WaitGroup
	for i, entity := range entities {
		wg.Add(1)
		go func(i int, entity string) {
			defer wg.Done()
			results[i] = e.Search(ctx, entity, perEntity)
		}(i, entity)
	}
	wg.Wait()

	merged := mergeByFirstSeen(results)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	// Re-render the merged set within 1.5x the original budget.
	renderBudget := totalBudget * 3 / 2
	text, stats := e.composeAtoms(merged, renderBudget/4)

	out := &Result{
		Context: text,
		Atoms:   merged,
		Meta: Meta{
			RequestID:    res.Meta.RequestID,
			Strategy:     "split_merge",
			Attempt:      res.Meta.Attempt,
			SplitQueries: entities,
			Compose:      stats,
		},
	}
	e.logger.Info("entity-split search merged", map[string]interface{}{
		"requestId": out.Meta.RequestID,
		"entities":  entities,
		"atoms":     len(merged),
	})
	return out
}

// mergeByFirstSeen merges result sets by atom id; the first occurrence wins
// and no score boost is applied for appearing in multiple sets.
func mergeByFirstSeen(results []*Result) []store.Atom {
	seen := map[string]bool{}
	var merged []store.Atom
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, a := range r.Atoms {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			merged = append(merged, a)
		}
	}
	return merged
}
