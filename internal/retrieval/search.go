package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mnemo/internal/compose"
	"mnemo/internal/nlp"
	"mnemo/internal/store"
)

// Tier weights and the engram seed score. Engram hits outrank both tiers.
const (
	anchorTierWeight = 70.0
	walkTierScore    = 30.0
	engramScore      = 200.0
)

// preparedQuery is the outcome of query preprocessing: scope markers pulled
// out, the remainder reduced to meaningful terms, and the reduction grounded
// in known vocabulary.
type preparedQuery struct {
	raw          string
	remainder    string
	scopeTags    []string
	scopeBuckets []string
	reduced      string
}

// prepare splits #markers into tags and buckets, reduces the remaining text,
// and appends vocabulary and synonym expansions.
func (e *Engine) prepare(query string, opts Options) preparedQuery {
	knownBuckets := append([]string{}, e.cfg.Retrieval.KnownBuckets...)
	knownBuckets = append(knownBuckets, e.vocabulary.Buckets()...)

	tags, buckets, remainder := nlp.ScopeMarkers(query, knownBuckets)
	tags = unionStrings(tags, opts.Tags)
	buckets = unionStrings(buckets, opts.Buckets)

	reduced := e.normalizer.Reduce(remainder, nlp.ReduceStandard)

	// Ground the query in known vocabulary: every tag appearing as a
	// substring of the lowercased query joins the term list. Deterministic;
	// no generative step.
	expansion := nlp.ExpandFromVocabulary(query, e.vocabulary.Tags())
	terms := strings.Fields(reduced)
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[strings.ToLower(t)] = true
	}
	for _, tag := range expansion {
		if !termSet[strings.ToLower(tag)] {
			termSet[strings.ToLower(tag)] = true
			terms = append(terms, tag)
		}
	}
	// Synonym rings widen exact term matches.
	for _, t := range strings.Fields(reduced) {
		for i, syn := range e.vocabulary.Synonyms(strings.ToLower(t)) {
			if i >= 2 {
				break
			}
			if !termSet[strings.ToLower(syn)] {
				termSet[strings.ToLower(syn)] = true
				terms = append(terms, syn)
			}
		}
	}

	return preparedQuery{
		raw:          query,
		remainder:    remainder,
		scopeTags:    tags,
		scopeBuckets: buckets,
		reduced:      strings.Join(terms, " "),
	}
}

// Search runs the standard two-tier search for a raw query.
func (e *Engine) Search(ctx context.Context, query string, opts Options) *Result {
	pq := e.prepare(query, opts)
	res := e.runSearch(ctx, pq, pq.reduced, opts, newRequestID())
	res.Meta.Strategy = "standard"
	res.Meta.Attempt = 1
	return res
}

// runSearch executes one complete search pass for an already-reduced query:
// engram short-circuit, anchor tier, walk tier, cleansing, blending and
// formatting. Store failures degrade the affected tier to empty.
func (e *Engine) runSearch(ctx context.Context, pq preparedQuery, reducedQuery string, opts Options, requestID string) *Result {
	start := e.now()
	plan := e.planBudget(opts.MaxChars)

	filters := store.Filters{
		Tags:     pq.scopeTags,
		Buckets:  pq.scopeBuckets,
		Types:    opts.Types,
		MinValue: opts.MinValue,
		MaxValue: opts.MaxValue,
	}

	// The engram lookup and the anchor fetch are independent; run them
	// concurrently and merge in the stable order engram, anchor, walk so
	// first-occurrence-wins dedup stays deterministic.
	var (
		wg          sync.WaitGroup
		engramAtoms []store.Atom
		anchorAtoms []store.Atom
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		engramAtoms = e.engramTier(ctx, pq)
	}()
	go func() {
		defer wg.Done()
		anchorAtoms = e.anchorTier(ctx, reducedQuery, filters, plan.anchorLimit)
	}()
	wg.Wait()

	cl := newCleanser()
	cl.addAll(engramAtoms, true)

	anchorKept := 0
	for _, a := range anchorAtoms {
		if anchorKept >= plan.anchorLimit {
			break
		}
		if cl.add(a, false) {
			anchorKept++
		}
	}

	walkAtoms := e.walkTier(ctx, cl.kept, cl.ids(), plan.walkLimit)
	walkKept := 0
	for _, a := range walkAtoms {
		if walkKept >= plan.walkLimit {
			break
		}
		if cl.add(a, false) {
			walkKept++
		}
	}

	atoms, engramFlags := cl.results()
	e.blend(atoms, engramFlags, opts.Scope)
	e.sliceContent(ctx, atoms)

	sort.SliceStable(atoms, func(i, j int) bool {
		return atoms[i].Score > atoms[j].Score
	})

	text, stats := e.composeAtoms(atoms, plan.tokenBudget)

	res := &Result{
		Context: text,
		Atoms:   atoms,
		Meta: Meta{
			RequestID:  requestID,
			Compose:    stats,
			DurationMs: e.now().Sub(start).Milliseconds(),
		},
	}
	e.logger.Debug("search pass complete", map[string]interface{}{
		"requestId": requestID,
		"query":     reducedQuery,
		"engram":    len(engramAtoms),
		"anchors":   anchorKept,
		"walked":    walkKept,
	})
	return res
}

// engramTier looks the raw query up as an engram key and seeds matching
// atoms at the engram score, filtered so every scope tag and bucket is
// present on each atom.
func (e *Engine) engramTier(ctx context.Context, pq preparedQuery) []store.Atom {
	key := strings.ToLower(strings.TrimSpace(pq.raw))
	if key == "" {
		return nil
	}
	ids, err := e.store.EngramAtomIDs(ctx, key)
	if err != nil {
		e.logger.Warn("engram lookup failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	atoms, err := e.store.AtomsByIDs(ctx, ids)
	if err != nil {
		e.logger.Warn("engram atom fetch failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var out []store.Atom
	for _, a := range atoms {
		if !hasAllTags(&a, pq.scopeTags) || !hasAllBuckets(&a, pq.scopeBuckets) {
			continue
		}
		a.Score = engramScore
		out = append(out, a)
	}
	return out
}

// anchorTier runs the full-text tier, overfetching 2x to survive dedup.
func (e *Engine) anchorTier(ctx context.Context, reducedQuery string, filters store.Filters, limit int) []store.Atom {
	if strings.TrimSpace(reducedQuery) == "" {
		return nil
	}
	atoms, err := e.store.SearchAtoms(ctx, reducedQuery, filters, 2*limit)
	if err != nil {
		e.logger.Warn("anchor tier degraded to empty", map[string]interface{}{"error": err.Error()})
		return nil
	}
	for i := range atoms {
		atoms[i].Score = anchorTierWeight * atoms[i].Score
	}
	return atoms
}

// walkTier fetches atoms sharing at least one tag with any kept anchor,
// excluding everything already kept, flat-scored.
func (e *Engine) walkTier(ctx context.Context, kept []store.Atom, excludeIDs []string, limit int) []store.Atom {
	tagSet := map[string]bool{}
	for _, a := range kept {
		for _, t := range a.Tags {
			tagSet[t] = true
		}
	}
	if len(tagSet) == 0 {
		return nil
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	atoms, err := e.store.AtomsSharingTags(ctx, tags, excludeIDs, 2*limit)
	if err != nil {
		e.logger.Warn("walk tier degraded to empty", map[string]interface{}{"error": err.Error()})
		return nil
	}
	for i := range atoms {
		atoms[i].Score = walkTierScore
	}
	return atoms
}

// blend applies the provenance and type multipliers to every non-engram
// result. The provenance rules are intentionally asymmetric across scopes
// and must stay that way.
func (e *Engine) blend(atoms []store.Atom, engramFlags []bool, scope string) {
	for i := range atoms {
		if engramFlags[i] {
			continue
		}
		atoms[i].Score *= provenanceMultiplier(scope, atoms[i].Provenance)
		atoms[i].Score *= typeMultiplier(atoms[i].Type)
	}
}

func provenanceMultiplier(scope string, prov store.Provenance) float64 {
	switch scope {
	case "internal":
		if prov == store.ProvInternal {
			return 3.0
		}
		return 0.5
	case "external":
		if prov != store.ProvInternal {
			return 1.5
		}
		return 1.0
	default: // "all" or unspecified
		if prov == store.ProvInternal {
			return 2.0
		}
		return 1.0
	}
}

func typeMultiplier(t store.AtomType) float64 {
	switch t {
	case store.TypeProse:
		return 1.0
	case store.TypeCode:
		return 0.8
	case store.TypeData:
		return 0.6
	case store.TypeLog:
		return 0.4
	default:
		return 1.0
	}
}

// sliceContent resolves each atom's content to its exact byte range inside
// its compound's canonical body. Compounds are fetched once per request;
// resolution failures leave the stored content untouched.
func (e *Engine) sliceContent(ctx context.Context, atoms []store.Atom) {
	cache := map[string]*store.Compound{}
	for i := range atoms {
		a := &atoms[i]
		if !a.HasRange() || a.CompoundID == "" {
			continue
		}
		compound, ok := cache[a.CompoundID]
		if !ok {
			var err error
			compound, err = e.store.GetCompound(ctx, a.CompoundID)
			if err != nil {
				cache[a.CompoundID] = nil
				continue
			}
			cache[a.CompoundID] = compound
		}
		if compound == nil || compound.Body == "" {
			continue
		}
		if sliced := compound.Slice(a.StartByte, a.EndByte); sliced != "" {
			a.Content = sliced
		}
	}
}

func (e *Engine) composeAtoms(atoms []store.Atom, tokenBudget int) (string, compose.Stats) {
	passages := make([]compose.Passage, len(atoms))
	for i, a := range atoms {
		passages[i] = compose.Passage{
			ID:      a.ID,
			Source:  a.Source,
			Content: a.Content,
			Score:   a.Score,
		}
	}
	return e.composer.Compose(passages, tokenBudget)
}

func hasAllTags(a *store.Atom, tags []string) bool {
	for _, t := range tags {
		if !a.HasTag(t) {
			return false
		}
	}
	return true
}

func hasAllBuckets(a *store.Atom, buckets []string) bool {
	for _, b := range buckets {
		if !a.HasBucket(b) {
			return false
		}
	}
	return true
}
