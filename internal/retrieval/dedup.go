package retrieval

import (
	"mnemo/internal/fingerprint"
	"mnemo/internal/store"
)

// nearDuplicateBits is the bit-distance below which two fingerprints are
// treated as the same content.
const nearDuplicateBits = 3

// cleanser deduplicates candidates by fingerprint proximity. Every new
// candidate with a non-zero fingerprint is compared against all previously
// kept fingerprints; a near-duplicate is folded into the atom that absorbed
// it (tag and bucket union) instead of being kept. Comparison is quadratic
// in the kept set, which stays in the hundreds per request.
type cleanser struct {
	kept   []store.Atom
	prints []uint64
	// owner[i] indexes the kept atom that recorded prints[i]
	owner []int
	// engram flags exempt the atom from provenance/type multipliers
	engram []bool
}

func newCleanser() *cleanser {
	return &cleanser{}
}

// add offers a candidate. It reports whether the candidate survived; a
// false return means its tags and buckets were merged into an earlier atom.
func (c *cleanser) add(a store.Atom, fromEngram bool) bool {
	fp, ok := a.FingerprintBits()
	if !ok || fp == 0 {
		c.kept = append(c.kept, a)
		c.engram = append(c.engram, fromEngram)
		return true
	}

	for i, existing := range c.prints {
		if fingerprint.Distance(fp, existing) < nearDuplicateBits {
			keptAtom := &c.kept[c.owner[i]]
			keptAtom.Tags = unionStrings(keptAtom.Tags, a.Tags)
			keptAtom.Buckets = unionStrings(keptAtom.Buckets, a.Buckets)
			return false
		}
	}

	c.kept = append(c.kept, a)
	c.engram = append(c.engram, fromEngram)
	c.prints = append(c.prints, fp)
	c.owner = append(c.owner, len(c.kept)-1)
	return true
}

// addAll offers a batch in order.
func (c *cleanser) addAll(atoms []store.Atom, fromEngram bool) {
	for _, a := range atoms {
		c.add(a, fromEngram)
	}
}

// results returns the kept atoms alongside their engram flags.
func (c *cleanser) results() ([]store.Atom, []bool) {
	return c.kept, c.engram
}

// has reports whether an atom id already survived cleansing.
func (c *cleanser) has(id string) bool {
	for _, a := range c.kept {
		if a.ID == id {
			return true
		}
	}
	return false
}

// ids returns the ids of all kept atoms.
func (c *cleanser) ids() []string {
	out := make([]string, len(c.kept))
	for i, a := range c.kept {
		out[i] = a.ID
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
