package retrieval

import (
	"context"
	"strings"

	"mnemo/internal/nlp"
)

// IterativeSearch relaxes the query across up to three attempts: the
// standard reduction first, then nouns and proper nouns only, then proper
// nouns only. The first non-empty result wins and carries the attempt number
// that produced it. Three empty attempts return the final empty result
// tagged attempt 4.
func (e *Engine) IterativeSearch(ctx context.Context, query string, opts Options) *Result {
	requestID := newRequestID()
	pq := e.prepare(query, opts)

	rungs := e.relaxationLadder(pq)
	var last *Result
	prev := ""
	for i, rung := range rungs {
		// An empty rung, or one identical to the rung just tried, cannot
		// match anything new; it keeps its slot in the numbering without
		// hitting the store.
		if strings.TrimSpace(rung) == "" || rung == prev {
			continue
		}
		prev = rung

		res := e.runSearch(ctx, pq, rung, opts, requestID)
		res.Meta.Strategy = "iterative"
		res.Meta.Attempt = i + 1
		if len(res.Atoms) > 0 {
			return res
		}
		last = res
	}

	if last == nil {
		last = emptyResult(requestID, "iterative", 0)
	}
	last.Meta.Attempt = len(rungs) + 1
	return last
}

// relaxationLadder builds the three reduction rungs in relaxation order:
// standard, nouns and proper nouns, proper nouns only. Scope tags are
// re-injected verbatim into the relaxed forms so a #tag the caller insisted
// on keeps constraining relaxed attempts. Every rung keeps its position even
// when empty, so an attempt number always names the same reduction.
func (e *Engine) relaxationLadder(pq preparedQuery) []string {
	nouns := reinjectTags(e.normalizer.Reduce(pq.remainder, nlp.ReduceNouns), pq.scopeTags)
	proper := reinjectTags(e.normalizer.Reduce(pq.remainder, nlp.ReduceProper), pq.scopeTags)
	return []string{pq.reduced, nouns, proper}
}

func reinjectTags(query string, tags []string) string {
	if len(tags) == 0 {
		return query
	}
	parts := []string{}
	if strings.TrimSpace(query) != "" {
		parts = append(parts, query)
	}
	parts = append(parts, tags...)
	return strings.Join(parts, " ")
}
