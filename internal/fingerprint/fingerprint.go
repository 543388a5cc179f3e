// Package fingerprint implements 64-bit content fingerprints compared by
// bit-difference (Hamming) distance. Fingerprints are SimHash-style: each
// token votes on the 64 bit positions of its blake2b hash, and the sign of
// each position's tally becomes the output bit. Near-duplicate content lands
// within a few bits of itself even after small edits.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// Width is the fingerprint width in bits.
const Width = 64

// MaxDistance is the distance assigned to unparseable fingerprints:
// assume dissimilar rather than fail the comparison.
const MaxDistance = Width

// Hash computes the SimHash fingerprint of the given content. Empty or
// tokenless content hashes to zero, which downstream consumers treat as
// "no fingerprint".
func Hash(content string) uint64 {
	tokens := tokenize(content)
	if len(tokens) == 0 {
		return 0
	}

	var votes [Width]int
	for _, tok := range tokens {
		h := tokenHash(tok)
		for i := 0; i < Width; i++ {
			if h&(1<<uint(i)) != 0 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < Width; i++ {
		if votes[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

func tokenHash(token string) uint64 {
	sum := blake2b.Sum256([]byte(token))
	return binary.BigEndian.Uint64(sum[:8])
}

func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Distance returns the number of differing bits between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similarity maps a distance to [0,1]: 1 for identical, 0 for fully distinct.
func Similarity(a, b uint64) float64 {
	return 1.0 - float64(Distance(a, b))/float64(Width)
}

// Parse decodes a hex-encoded fingerprint. Malformed input returns (0, false);
// callers score such fingerprints at MaxDistance instead of propagating the
// parse failure.
func Parse(s string) (uint64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if s == "" || len(s) > 16 {
		return 0, false
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, false
	}
	var fp uint64
	for _, b := range raw {
		fp = fp<<8 | uint64(b)
	}
	return fp, true
}

// Format encodes a fingerprint as a 16-digit hex string.
func Format(fp uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], fp)
	return hex.EncodeToString(buf[:])
}

// ParseDistance compares two hex-encoded fingerprints, treating malformed
// input as maximally distant.
func ParseDistance(a, b string) int {
	fa, okA := Parse(a)
	fb, okB := Parse(b)
	if !okA || !okB {
		return MaxDistance
	}
	return Distance(fa, fb)
}

// KeyHash derives the stable engram key for a normalized lookup string.
func KeyHash(key string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(key))))
	return hex.EncodeToString(sum[:16])
}
