// Package retrieval implements the orchestrator that turns a raw query into
// a ranked, deduplicated, budget-bounded set of atoms plus a rendered
// context block. It sequences the strategies, merges their results, and
// never lets a sub-step failure escape its public entry points: the worst
// case is a reduced-quality or empty answer.
package retrieval

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mnemo/internal/compose"
	"mnemo/internal/config"
	"mnemo/internal/inflate"
	"mnemo/internal/logging"
	"mnemo/internal/nlp"
	"mnemo/internal/store"
	"mnemo/internal/vocab"
	"mnemo/internal/walker"
)

// Store is the corpus access the orchestrator needs. *store.DB satisfies it.
type Store interface {
	SearchAtoms(ctx context.Context, query string, filters store.Filters, limit int) ([]store.Atom, error)
	AtomsSharingTags(ctx context.Context, tags []string, excludeIDs []string, limit int) ([]store.Atom, error)
	AtomsByIDs(ctx context.Context, ids []string) ([]store.Atom, error)
	AtomsNear(ctx context.Context, compoundID string, start, end, pad int, excludeIDs []string) ([]store.Atom, error)
	EngramAtomIDs(ctx context.Context, key string) ([]string, error)
	GetCompound(ctx context.Context, id string) (*store.Compound, error)
}

// Engine is the retrieval orchestrator.
type Engine struct {
	store      Store
	walker     *walker.Walker
	inflator   *inflate.Inflator
	composer   *compose.Composer
	normalizer *nlp.Normalizer
	vocabulary *vocab.Vocabulary
	cfg        *config.Config
	logger     *logging.Logger
	now        func() time.Time
}

// NewEngine wires the orchestrator. The tagger is handed in rather than
// constructed here so every component shares the lazily loaded model.
func NewEngine(st Store, tagger nlp.Tagger, vocabulary *vocab.Vocabulary, cfg *config.Config, logger *logging.Logger) *Engine {
	domain := append([]string{}, cfg.Retrieval.DomainTerms...)
	domain = append(domain, vocabulary.DomainTerms()...)

	return &Engine{
		store:      st,
		walker:     walker.New(st, cfg.Walker, logger),
		inflator:   inflate.New(inflate.NewFileReader(cfg.Inflate.BaseDir), cfg.Inflate, logger),
		composer:   compose.New(),
		normalizer: nlp.NewNormalizer(tagger, domain),
		vocabulary: vocabulary,
		cfg:        cfg,
		logger:     logger.Component("retrieval"),
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Options are the caller-supplied scope restrictions for one query.
type Options struct {
	Buckets  []string
	Tags     []string
	MaxChars int
	// Scope selects the provenance weighting: "internal", "external" or
	// "all" (the default).
	Scope    string
	Types    []string
	MinValue *float64
	MaxValue *float64
}

// Meta describes how a result was produced.
type Meta struct {
	RequestID    string        `json:"requestId"`
	Strategy     string        `json:"strategy"`
	Attempt      int           `json:"attempt"`
	SplitQueries []string      `json:"splitQueries,omitempty"`
	Compose      compose.Stats `json:"compose"`
	DurationMs   int64         `json:"durationMs"`
}

// Result is a completed retrieval. Atoms are sorted descending by score.
type Result struct {
	Context string       `json:"context"`
	Atoms   []store.Atom `json:"atoms"`
	Meta    Meta         `json:"meta"`

	renderOnce sync.Once
	rendered   string
}

// PlainText lazily renders the result's atoms as plain text, one fragment
// per line, without the composer's headers or budget.
func (r *Result) PlainText() string {
	r.renderOnce.Do(func() {
		var b strings.Builder
		for _, a := range r.Atoms {
			b.WriteString(strings.TrimSpace(a.Content))
			b.WriteString("\n")
		}
		r.rendered = b.String()
	})
	return r.rendered
}

func emptyResult(requestID, strategy string, attempt int) *Result {
	return &Result{Meta: Meta{RequestID: requestID, Strategy: strategy, Attempt: attempt}}
}

func newRequestID() string {
	return uuid.NewString()
}

// budgetPlan converts a character budget to atom-count limits: chars/4
// approximates tokens, one retrieved atom averages the configured tokens,
// and the target splits 70/30 into anchor and walk limits.
type budgetPlan struct {
	maxChars    int
	tokenBudget int
	anchorLimit int
	walkLimit   int
}

func (e *Engine) planBudget(maxChars int) budgetPlan {
	if maxChars <= 0 {
		maxChars = e.cfg.Retrieval.DefaultMaxChars
	}
	tokens := maxChars / 4
	target := tokens / e.cfg.Retrieval.TokensPerAtom
	if target < e.cfg.Retrieval.MinAtoms {
		target = e.cfg.Retrieval.MinAtoms
	}

	anchor := target * 7 / 10
	if anchor < 1 {
		anchor = 1
	}
	walk := target - anchor
	if walk < 2 {
		walk = 2
	}
	return budgetPlan{
		maxChars:    maxChars,
		tokenBudget: tokens,
		anchorLimit: anchor,
		walkLimit:   walk,
	}
}

// Associate exposes the raw gravity walk: anchor atom ids in, scored
// neighbors out. Failures inside the walker already degrade to empty.
func (e *Engine) Associate(ctx context.Context, anchorIDs []string) []walker.Node {
	return e.walker.Walk(ctx, anchorIDs)
}

// AssociateTags exposes the tag-seeded walk variant for callers that have a
// tag cloud but no atom anchors.
func (e *Engine) AssociateTags(ctx context.Context, tags []string) []walker.Node {
	return e.walker.WalkTags(ctx, tags)
}

// Inflate expands fragment matches into padded context windows under the
// given character budget.
func (e *Engine) Inflate(matches []inflate.Match, budget int) []inflate.Window {
	return e.inflator.Inflate(matches, budget)
}
