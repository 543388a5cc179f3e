// Package store provides read access to the ingested corpus: atoms,
// compounds and engrams backed by SQLite with an FTS5 index. The retrieval
// core treats the store as read-only; the write API exists for ingestion
// tooling and tests.
package store

import (
	"mnemo/internal/fingerprint"
)

// Provenance classifies where an atom came from.
type Provenance string

const (
	// ProvInternal marks first-party content
	ProvInternal Provenance = "internal"
	// ProvExternal marks imported content
	ProvExternal Provenance = "external"
	// ProvQuarantine marks content pending review
	ProvQuarantine Provenance = "quarantine"
)

// AtomType classifies the content of an atom.
type AtomType string

const (
	// TypeProse is free text (the default)
	TypeProse AtomType = "prose"
	// TypeCode is source code
	TypeCode AtomType = "code"
	// TypeData is structured data
	TypeData AtomType = "data"
	// TypeLog is log output
	TypeLog AtomType = "log"
	// TypeThought is agent-generated reflection
	TypeThought AtomType = "thought"
)

// Atom is the unit of retrieval.
type Atom struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Source      string     `json:"source"`
	CompoundID  string     `json:"compoundId,omitempty"`
	StartByte   int        `json:"startByte"`
	EndByte     int        `json:"endByte"`
	Tags        []string   `json:"tags,omitempty"`
	Buckets     []string   `json:"buckets,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	CreatedAt   int64      `json:"createdAt"`
	Provenance  Provenance `json:"provenance"`
	Type        AtomType   `json:"type"`
	Value       *float64   `json:"value,omitempty"`
	Unit        string     `json:"unit,omitempty"`
	Seq         *int       `json:"seq,omitempty"`

	// Score is mutable and strategy-dependent; it is never persisted.
	Score float64 `json:"score"`
}

// HasRange reports whether the atom carries a valid byte range into its
// compound's canonical body.
func (a *Atom) HasRange() bool {
	return a.StartByte >= 0 && a.EndByte > a.StartByte
}

// FingerprintBits parses the atom's hex fingerprint. Malformed or absent
// fingerprints come back as (0, false).
func (a *Atom) FingerprintBits() (uint64, bool) {
	if a.Fingerprint == "" {
		return 0, false
	}
	return fingerprint.Parse(a.Fingerprint)
}

// HasTag reports whether the atom carries the given tag.
func (a *Atom) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasBucket reports whether the atom belongs to the given bucket.
func (a *Atom) HasBucket(bucket string) bool {
	for _, b := range a.Buckets {
		if b == bucket {
			return true
		}
	}
	return false
}

// SharedTags counts how many of the atom's tags appear in the given set.
func (a *Atom) SharedTags(tags map[string]bool) int {
	n := 0
	for _, t := range a.Tags {
		if tags[t] {
			n++
		}
	}
	return n
}

// Compound is a parent document whose canonical body is the coordinate space
// for its atoms' byte ranges.
type Compound struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Body      string `json:"-"`
	BodyLen   int    `json:"bodyLen"`
	CreatedAt int64  `json:"createdAt"`
}

// Slice returns body[start:end), clamped to the body's bounds.
func (c *Compound) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(c.Body) {
		end = len(c.Body)
	}
	if start >= end {
		return ""
	}
	return c.Body[start:end]
}
