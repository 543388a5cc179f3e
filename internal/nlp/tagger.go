// Package nlp provides query normalization on top of a part-of-speech
// tagging collaborator.
package nlp

import (
	"sync"

	"github.com/jdkato/prose/v2"
)

// POS is a coarse part-of-speech class.
type POS string

const (
	// Noun covers common nouns
	Noun POS = "NOUN"
	// ProperNoun covers proper nouns
	ProperNoun POS = "PROPN"
	// Verb covers all verb forms
	Verb POS = "VERB"
	// Adjective covers adjectives
	Adjective POS = "ADJ"
	// Number covers cardinal numbers
	Number POS = "NUM"
	// Other covers everything else
	Other POS = "OTHER"
)

// Token is a word annotated with its part of speech.
type Token struct {
	Text string
	POS  POS
}

// Tagger annotates text with part-of-speech tags. Implementations must be
// safe for concurrent use.
type Tagger interface {
	Tag(text string) ([]Token, error)
}

// proseTagger wraps the prose tokenizer/tagger.
type proseTagger struct{}

func (proseTagger) Tag(text string) ([]Token, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err != nil {
		return nil, err
	}

	raw := doc.Tokens()
	tokens := make([]Token, 0, len(raw))
	for _, t := range raw {
		tokens = append(tokens, Token{Text: t.Text, POS: coarseTag(t.Tag)})
	}
	return tokens, nil
}

// coarseTag collapses Penn Treebank tags into the classes the normalizer
// filters on.
func coarseTag(penn string) POS {
	switch penn {
	case "NN", "NNS":
		return Noun
	case "NNP", "NNPS":
		return ProperNoun
	case "VB", "VBD", "VBG", "VBN", "VBP", "VBZ":
		return Verb
	case "JJ", "JJR", "JJS":
		return Adjective
	case "CD":
		return Number
	default:
		return Other
	}
}

var (
	defaultTagger     Tagger
	defaultTaggerOnce sync.Once
)

// DefaultTagger returns the process-wide tagger, initialized lazily on first
// use. The underlying model load is expensive; components receive the tagger
// by injection and share this instance.
func DefaultTagger() Tagger {
	defaultTaggerOnce.Do(func() {
		defaultTagger = proseTagger{}
	})
	return defaultTagger
}
