package nlp

import (
	"strings"
	"time"
	"unicode"
)

// ReduceMode selects which part-of-speech classes survive query reduction.
type ReduceMode int

const (
	// ReduceStandard keeps nouns, proper nouns and verbs
	ReduceStandard ReduceMode = iota
	// ReduceNouns keeps nouns and proper nouns only
	ReduceNouns
	// ReduceProper keeps proper nouns only
	ReduceProper
)

// Normalizer reduces raw queries to meaningful search terms.
type Normalizer struct {
	tagger Tagger
	// domainTerms are always kept regardless of tag, lowercased.
	domainTerms map[string]bool
	now         func() time.Time
}

// NewNormalizer creates a Normalizer around the given tagger. domainTerms is
// an optional whitelist of words that survive reduction regardless of their
// part of speech.
func NewNormalizer(tagger Tagger, domainTerms []string) *Normalizer {
	whitelist := make(map[string]bool, len(domainTerms))
	for _, t := range domainTerms {
		whitelist[strings.ToLower(t)] = true
	}
	return &Normalizer{tagger: tagger, domainTerms: whitelist, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Reduce strips noise, extracts temporal hints, and filters the remaining
// words by part of speech. In ReduceStandard mode an empty reduction falls
// back to the sanitized raw query; the stricter modes return what they have,
// possibly nothing, so callers can detect exhausted relaxation.
func (n *Normalizer) Reduce(query string, mode ReduceMode) string {
	years, remainder := ExtractTemporal(query, n.now())
	cleaned := Sanitize(remainder)

	var kept []string
	tokens, err := n.tagger.Tag(cleaned)
	if err == nil {
		for _, tok := range tokens {
			if n.keep(tok, mode) {
				kept = append(kept, tok.Text)
			}
		}
	}
	kept = append(kept, years...)

	if len(kept) == 0 && mode == ReduceStandard {
		return Sanitize(query)
	}
	return strings.Join(kept, " ")
}

func (n *Normalizer) keep(tok Token, mode ReduceMode) bool {
	if n.domainTerms[strings.ToLower(tok.Text)] {
		return true
	}
	switch mode {
	case ReduceProper:
		return tok.POS == ProperNoun
	case ReduceNouns:
		return tok.POS == Noun || tok.POS == ProperNoun
	default:
		return tok.POS == Noun || tok.POS == ProperNoun || tok.POS == Verb
	}
}

// Sanitize strips noise characters, keeping letters, digits and spaces.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/' || r == '.':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ScopeMarkers extracts #-prefixed markers from a query. Markers naming a
// known bucket, or containing "inbox", are returned as buckets; the rest are
// tags. The remainder is the query with all markers removed.
func ScopeMarkers(query string, knownBuckets []string) (tags, buckets []string, remainder string) {
	bucketSet := make(map[string]bool, len(knownBuckets))
	for _, b := range knownBuckets {
		bucketSet[strings.ToLower(b)] = true
	}

	var rest []string
	for _, field := range strings.Fields(query) {
		if !strings.HasPrefix(field, "#") || len(field) == 1 {
			rest = append(rest, field)
			continue
		}
		name := strings.ToLower(strings.Trim(field[1:], ".,;:!?"))
		if name == "" {
			continue
		}
		if bucketSet[name] || strings.Contains(name, "inbox") {
			buckets = append(buckets, name)
		} else {
			tags = append(tags, name)
		}
	}
	return tags, buckets, strings.Join(rest, " ")
}

// ExpandFromVocabulary appends every known tag that appears as a substring of
// the lowercased query. This grounds free text in known vocabulary without
// any generative step, and is deterministic given a stable vocabulary order.
func ExpandFromVocabulary(query string, vocabulary []string) []string {
	lower := strings.ToLower(query)
	var matched []string
	for _, tag := range vocabulary {
		t := strings.ToLower(tag)
		if t != "" && strings.Contains(lower, t) {
			matched = append(matched, tag)
		}
	}
	return matched
}
