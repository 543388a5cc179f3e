package retrieval

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"mnemo/internal/config"
	"mnemo/internal/errors"
	"mnemo/internal/logging"
	"mnemo/internal/nlp"
	"mnemo/internal/store"
	"mnemo/internal/vocab"
)

// lexTagger assigns parts of speech from a fixed lexicon, defaulting to
// Other. Deterministic stand-in for the prose model.
type lexTagger map[string]nlp.POS

func (l lexTagger) Tag(text string) ([]nlp.Token, error) {
	var tokens []nlp.Token
	for _, f := range strings.Fields(text) {
		pos, ok := l[strings.ToLower(f)]
		if !ok {
			pos = nlp.Other
		}
		tokens = append(tokens, nlp.Token{Text: f, POS: pos})
	}
	return tokens, nil
}

var testLexicon = lexTagger{
	"alice":    nlp.ProperNoun,
	"bob":      nlp.ProperNoun,
	"deploy":   nlp.Noun,
	"burnout":  nlp.Noun,
	"incident": nlp.Noun,
	"oncall":   nlp.Noun,
	"describe": nlp.Verb,
	"compare":  nlp.Other,
	"and":      nlp.Other,
	"the":      nlp.Other,
}

// fakeStore is an in-memory corpus. Full-text matching requires every query
// term to appear in the atom's content, which keeps relaxation scenarios
// deterministic.
type fakeStore struct {
	atoms   []store.Atom
	engrams map[string][]string
	fail    bool
}

func (f *fakeStore) SearchAtoms(ctx context.Context, query string, filters store.Filters, limit int) ([]store.Atom, error) {
	if f.fail {
		return nil, errors.New(errors.StoreUnavailable, "search down", nil)
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	var out []store.Atom
	for _, a := range f.atoms {
		content := strings.ToLower(a.Content)
		all := true
		for _, t := range terms {
			if !strings.Contains(content, t) {
				all = false
				break
			}
		}
		if !all || !matchesFilters(&a, filters) {
			continue
		}
		a.Score = 0.5
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchesFilters(a *store.Atom, filters store.Filters) bool {
	if filters.Provenance != "" && a.Provenance != filters.Provenance {
		return false
	}
	for _, t := range filters.Tags {
		if !a.HasTag(t) {
			return false
		}
	}
	for _, b := range filters.Buckets {
		if !a.HasBucket(b) {
			return false
		}
	}
	return true
}

func (f *fakeStore) AtomsSharingTags(ctx context.Context, tags []string, excludeIDs []string, limit int) ([]store.Atom, error) {
	if f.fail {
		return nil, errors.New(errors.StoreUnavailable, "store down", nil)
	}
	tagSet := map[string]bool{}
	for _, t := range tags {
		tagSet[t] = true
	}
	excluded := map[string]bool{}
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []store.Atom
	for _, a := range f.atoms {
		if excluded[a.ID] || a.SharedTags(tagSet) == 0 {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) AtomsByIDs(ctx context.Context, ids []string) ([]store.Atom, error) {
	var out []store.Atom
	for _, id := range ids {
		for _, a := range f.atoms {
			if a.ID == id {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) AtomsNear(ctx context.Context, compoundID string, start, end, pad int, excludeIDs []string) ([]store.Atom, error) {
	return nil, nil
}

func (f *fakeStore) EngramAtomIDs(ctx context.Context, key string) ([]string, error) {
	return f.engrams[key], nil
}

func (f *fakeStore) GetCompound(ctx context.Context, id string) (*store.Compound, error) {
	return nil, errors.New(errors.CompoundMissing, id, nil)
}

func newTestEngine(fs *fakeStore) *Engine {
	return NewEngine(fs, testLexicon, vocab.New("", ""), config.Default(), logging.Discard())
}

func proseAtom(id, content string, tags ...string) store.Atom {
	return store.Atom{
		ID: id, Content: content, Source: "notes/" + id + ".md",
		Tags: tags, StartByte: -1, EndByte: -1,
		Provenance: store.ProvInternal, Type: store.TypeProse,
	}
}

func resultIDs(res *Result) []string {
	ids := make([]string, len(res.Atoms))
	for i, a := range res.Atoms {
		ids[i] = a.ID
	}
	return ids
}

func TestSearchAnchorAndWalkTiers(t *testing.T) {
	fs := &fakeStore{atoms: []store.Atom{
		proseAtom("hit", "the deploy incident writeup", "deploy"),
		proseAtom("walked", "unrelated content about the same topic", "deploy"),
	}}
	e := newTestEngine(fs)

	res := e.Search(context.Background(), "deploy incident", Options{})
	if len(res.Atoms) != 2 {
		t.Fatalf("got %d atoms, want anchor + walked", len(res.Atoms))
	}
	if res.Atoms[0].ID != "hit" {
		t.Errorf("top atom = %s, want the direct match", res.Atoms[0].ID)
	}
	// Anchor: 70 * 0.5 relevance * 2.0 internal * 1.0 prose = 70.
	if res.Atoms[0].Score != 70 {
		t.Errorf("anchor score = %v, want 70", res.Atoms[0].Score)
	}
	// Walk: flat 30 * 2.0 internal * 1.0 prose = 60.
	if res.Atoms[1].Score != 60 {
		t.Errorf("walk score = %v, want 60", res.Atoms[1].Score)
	}
	if res.Meta.Strategy != "standard" || res.Meta.Attempt != 1 {
		t.Errorf("meta = %+v", res.Meta)
	}
	if res.Meta.RequestID == "" {
		t.Error("request id missing")
	}
	if res.Context == "" {
		t.Error("no rendered context")
	}
}

func TestSearchEngramOutranksEverything(t *testing.T) {
	fs := &fakeStore{
		atoms: []store.Atom{
			proseAtom("seeded", "pinned answer for this exact question"),
			proseAtom("hit", "deploy incident retrospective"),
		},
		engrams: map[string][]string{"deploy incident": {"seeded"}},
	}
	e := newTestEngine(fs)

	res := e.Search(context.Background(), "deploy incident", Options{})
	if res.Atoms[0].ID != "seeded" {
		t.Fatalf("top atom = %s, want the engram seed", res.Atoms[0].ID)
	}
	// Engram hits keep their seed score: multipliers never touch them.
	if res.Atoms[0].Score != 200 {
		t.Errorf("engram score = %v, want exactly 200", res.Atoms[0].Score)
	}
}

func TestSearchEngramRespectsScopeMarkers(t *testing.T) {
	fs := &fakeStore{
		atoms: []store.Atom{
			proseAtom("tagged", "pinned", "infra"),
			proseAtom("untagged", "pinned"),
		},
		engrams: map[string][]string{"pinned answer": {"tagged", "untagged"}},
	}
	e := newTestEngine(fs)

	res := e.Search(context.Background(), "pinned answer", Options{Tags: []string{"infra"}})
	for _, a := range res.Atoms {
		if a.ID == "untagged" && a.Score == 200 {
			t.Error("engram seed escaped the tag scope")
		}
	}
	found := false
	for _, a := range res.Atoms {
		if a.ID == "tagged" && a.Score == 200 {
			found = true
		}
	}
	if !found {
		t.Error("scoped engram seed missing")
	}
}

func TestSearchStoreFailureDegradesToEmpty(t *testing.T) {
	e := newTestEngine(&fakeStore{fail: true})

	res := e.Search(context.Background(), "deploy", Options{})
	if len(res.Atoms) != 0 {
		t.Errorf("got %d atoms from a failed store", len(res.Atoms))
	}
}

func TestPrepareScopeMarkers(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	pq := e.prepare("deploy notes #infra #inbox", Options{Tags: []string{"oncall"}})
	if !contains(pq.scopeTags, "infra") || !contains(pq.scopeTags, "oncall") {
		t.Errorf("scope tags = %v, want marker and option tags merged", pq.scopeTags)
	}
	if !contains(pq.scopeBuckets, "inbox") {
		t.Errorf("scope buckets = %v, want [inbox]", pq.scopeBuckets)
	}
	if strings.Contains(pq.remainder, "#") {
		t.Errorf("remainder %q still carries markers", pq.remainder)
	}
}

func TestPrepareVocabularyExpansion(t *testing.T) {
	v := loadVocab(t, `
[vocabulary]
tags = ["burnout", "oncall"]
`, "burnout:\n  - exhaustion\n  - overwork\n  - fatigue\n")

	e := NewEngine(&fakeStore{}, testLexicon, v, config.Default(), logging.Discard())

	pq := e.prepare("the burnout incident", Options{})
	for _, want := range []string{"burnout", "incident", "exhaustion", "overwork"} {
		if !strings.Contains(pq.reduced, want) {
			t.Errorf("reduced %q missing %q", pq.reduced, want)
		}
	}
	// Rings contribute at most two synonyms per term.
	if strings.Contains(pq.reduced, "fatigue") {
		t.Errorf("reduced %q carries a third synonym", pq.reduced)
	}
	if strings.Contains(pq.reduced, "oncall") {
		t.Errorf("reduced %q expanded an absent vocabulary tag", pq.reduced)
	}
}

func TestPlanBudget(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	tests := []struct {
		name       string
		maxChars   int
		wantAnchor int
		wantWalk   int
		wantTokens int
	}{
		{"default budget", 0, 7, 3, 2000},
		{"explicit budget", 8000, 7, 3, 2000},
		{"small budget hits atom floor", 400, 3, 2, 100},
		{"large budget", 40000, 35, 15, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := e.planBudget(tt.maxChars)
			if plan.anchorLimit != tt.wantAnchor || plan.walkLimit != tt.wantWalk {
				t.Errorf("limits = %d/%d, want %d/%d",
					plan.anchorLimit, plan.walkLimit, tt.wantAnchor, tt.wantWalk)
			}
			if plan.tokenBudget != tt.wantTokens {
				t.Errorf("tokens = %d, want %d", plan.tokenBudget, tt.wantTokens)
			}
		})
	}
}

func TestProvenanceMultiplier(t *testing.T) {
	tests := []struct {
		scope string
		prov  store.Provenance
		want  float64
	}{
		{"internal", store.ProvInternal, 3.0},
		{"internal", store.ProvExternal, 0.5},
		{"internal", store.ProvQuarantine, 0.5},
		{"external", store.ProvExternal, 1.5},
		{"external", store.ProvQuarantine, 1.5},
		{"external", store.ProvInternal, 1.0},
		{"all", store.ProvInternal, 2.0},
		{"all", store.ProvExternal, 1.0},
		{"", store.ProvInternal, 2.0},
	}
	for _, tt := range tests {
		if got := provenanceMultiplier(tt.scope, tt.prov); got != tt.want {
			t.Errorf("provenanceMultiplier(%q, %q) = %v, want %v", tt.scope, tt.prov, got, tt.want)
		}
	}
}

func TestTypeMultiplier(t *testing.T) {
	tests := []struct {
		typ  store.AtomType
		want float64
	}{
		{store.TypeProse, 1.0},
		{store.TypeCode, 0.8},
		{store.TypeData, 0.6},
		{store.TypeLog, 0.4},
		{store.TypeThought, 1.0},
	}
	for _, tt := range tests {
		if got := typeMultiplier(tt.typ); got != tt.want {
			t.Errorf("typeMultiplier(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestIterativeSearchRelaxes(t *testing.T) {
	fs := &fakeStore{atoms: []store.Atom{
		proseAtom("checklist", "deploy checklist"),
	}}
	e := newTestEngine(fs)

	// "describe deploy" reduces to verb+noun, which has no full match; the
	// noun-only rung matches on the second attempt.
	res := e.IterativeSearch(context.Background(), "describe deploy", Options{})
	if len(res.Atoms) != 1 {
		t.Fatalf("got %d atoms, want 1", len(res.Atoms))
	}
	if res.Meta.Strategy != "iterative" || res.Meta.Attempt != 2 {
		t.Errorf("meta = %+v, want iterative attempt 2", res.Meta)
	}
}

func TestIterativeSearchExhausted(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	// Three distinct rungs (standard, nouns, proper) all come back empty.
	res := e.IterativeSearch(context.Background(), "describe Alice deploy", Options{})
	if len(res.Atoms) != 0 {
		t.Fatalf("got %d atoms, want none", len(res.Atoms))
	}
	if res.Meta.Attempt != 4 {
		t.Errorf("attempt = %d, want 4 after three exhausted rungs", res.Meta.Attempt)
	}
}

func TestIterativeSearchAttemptNumberingStable(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	// Verb-only query: the noun and proper rungs are empty. Exhaustion still
	// reports attempt 4 so an attempt number always names the same reduction.
	res := e.IterativeSearch(context.Background(), "describe", Options{})
	if res.Meta.Attempt != 4 {
		t.Errorf("attempt = %d, want 4 with empty relaxation rungs", res.Meta.Attempt)
	}

	// A proper rung identical to the noun rung keeps its slot as well.
	res = e.IterativeSearch(context.Background(), "describe Alice", Options{})
	if res.Meta.Attempt != 4 {
		t.Errorf("attempt = %d, want 4 with a duplicate proper rung", res.Meta.Attempt)
	}
}

func TestRelaxationLadder(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	pq := e.prepare("describe Alice deploy", Options{})
	attempts := e.relaxationLadder(pq)
	if len(attempts) != 3 {
		t.Fatalf("ladder = %v, want 3 rungs", attempts)
	}
	if attempts[1] != "Alice deploy" || attempts[2] != "Alice" {
		t.Errorf("relaxed rungs = %q, %q", attempts[1], attempts[2])
	}

	// Scope tags re-enter relaxed forms so caller constraints survive.
	pq = e.prepare("describe Alice #infra", Options{})
	attempts = e.relaxationLadder(pq)
	for _, rung := range attempts[1:] {
		if !strings.Contains(rung, "infra") {
			t.Errorf("rung %q lost the scope tag", rung)
		}
	}
}

func TestSmartSearchShortCircuits(t *testing.T) {
	var atoms []store.Atom
	for i := 0; i < 12; i++ {
		atoms = append(atoms, proseAtom(
			fmt.Sprintf("d%d", i), fmt.Sprintf("deploy record %d", i), "deploy"))
	}
	e := newTestEngine(&fakeStore{atoms: atoms})

	res := e.SmartSearch(context.Background(), "deploy", Options{})
	if res.Meta.Strategy != "standard" {
		t.Errorf("strategy = %q, want standard short-circuit", res.Meta.Strategy)
	}
	if len(res.Atoms) < e.cfg.Retrieval.SplitShortCircuit {
		t.Errorf("got %d atoms, want at least %d",
			len(res.Atoms), e.cfg.Retrieval.SplitShortCircuit)
	}
}

func TestSmartSearchShallowWithoutEntities(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	res := e.SmartSearch(context.Background(), "the and", Options{})
	if res.Meta.Strategy != "shallow" {
		t.Errorf("strategy = %q, want shallow", res.Meta.Strategy)
	}
}

func TestSmartSearchSplitsOnEntities(t *testing.T) {
	fs := &fakeStore{atoms: []store.Atom{
		proseAtom("summit", "alice and bob at the oncall summit"),
		proseAtom("a1", "alice incident notes"),
		proseAtom("b1", "bob handoff checklist"),
	}}
	e := newTestEngine(fs)

	res := e.SmartSearch(context.Background(), "compare Alice and Bob", Options{})
	if res.Meta.Strategy != "split_merge" {
		t.Fatalf("strategy = %q, want split_merge", res.Meta.Strategy)
	}
	if len(res.Meta.SplitQueries) != 2 {
		t.Errorf("split queries = %v, want one per entity", res.Meta.SplitQueries)
	}

	// Each entity search contributes, and the shared atom appears once.
	ids := resultIDs(res)
	counts := map[string]int{}
	for _, id := range ids {
		counts[id]++
	}
	if counts["summit"] != 1 {
		t.Errorf("shared atom appeared %d times: %v", counts["summit"], ids)
	}
	for _, want := range []string{"a1", "b1", "summit"} {
		if counts[want] == 0 {
			t.Errorf("merged result missing %s: %v", want, ids)
		}
	}
}

func loadVocab(t *testing.T, manifest, synonyms string) *vocab.Vocabulary {
	t.Helper()
	dir := t.TempDir()
	manifestPath := dir + "/vocabulary.toml"
	synonymsPath := dir + "/synonyms.yaml"
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(synonymsPath, []byte(synonyms), 0644); err != nil {
		t.Fatal(err)
	}
	v := vocab.New(manifestPath, synonymsPath)
	if err := v.Reload(); err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
