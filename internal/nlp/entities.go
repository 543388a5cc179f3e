package nlp

import (
	"sort"
	"strings"
)

// TopEntities returns up to max proper-noun entities from the query, ranked
// by frequency and then by first occurrence. When the query carries no proper
// nouns it falls back to common nouns. The returned order is stable, which
// downstream fan-out relies on for deterministic merging.
func (n *Normalizer) TopEntities(query string, max int) []string {
	tokens, err := n.tagger.Tag(Sanitize(query))
	if err != nil || len(tokens) == 0 {
		return nil
	}

	entities := rankByFrequency(tokens, ProperNoun, max)
	if len(entities) == 0 {
		entities = rankByFrequency(tokens, Noun, max)
	}
	return entities
}

func rankByFrequency(tokens []Token, pos POS, max int) []string {
	type stat struct {
		text  string
		count int
		first int
	}
	byKey := map[string]*stat{}
	var order []*stat

	for i, tok := range tokens {
		if tok.POS != pos || len(tok.Text) < 2 {
			continue
		}
		key := strings.ToLower(tok.Text)
		if s, ok := byKey[key]; ok {
			s.count++
			continue
		}
		s := &stat{text: tok.Text, count: 1, first: i}
		byKey[key] = s
		order = append(order, s)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) == 0 {
		return nil
	}
	if max > 0 && len(order) > max {
		order = order[:max]
	}
	out := make([]string, len(order))
	for i, s := range order {
		out[i] = s.text
	}
	return out
}
