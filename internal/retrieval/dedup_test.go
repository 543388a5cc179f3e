package retrieval

import (
	"reflect"
	"testing"

	"mnemo/internal/fingerprint"
	"mnemo/internal/store"
)

func fpAtom(id string, fp uint64, tags ...string) store.Atom {
	return store.Atom{ID: id, Content: "content " + id,
		Fingerprint: fingerprint.Format(fp), Tags: tags,
		StartByte: -1, EndByte: -1}
}

func TestCleanserMergesNearDuplicates(t *testing.T) {
	c := newCleanser()

	// One bit apart: the second atom folds into the first.
	if !c.add(fpAtom("orig", 0xF0, "a"), false) {
		t.Fatal("first atom rejected")
	}
	if c.add(fpAtom("dup", 0xF1, "b"), false) {
		t.Fatal("near-duplicate survived")
	}

	atoms, _ := c.results()
	if len(atoms) != 1 {
		t.Fatalf("kept %d atoms, want 1", len(atoms))
	}
	if !reflect.DeepEqual(atoms[0].Tags, []string{"a", "b"}) {
		t.Errorf("tags = %v, want union [a b]", atoms[0].Tags)
	}
	if atoms[0].ID != "orig" {
		t.Errorf("survivor = %s, want the first-seen atom", atoms[0].ID)
	}
}

func TestCleanserKeepsDistinctContent(t *testing.T) {
	c := newCleanser()
	c.add(fpAtom("x", 0xF0), false)
	if !c.add(fpAtom("y", 0xF7), false) {
		t.Error("atom at distance 3 merged; the bar is strictly below 3")
	}

	atoms, _ := c.results()
	if len(atoms) != 2 {
		t.Errorf("kept %d atoms, want 2", len(atoms))
	}
}

func TestCleanserIdempotent(t *testing.T) {
	c := newCleanser()
	c.addAll([]store.Atom{
		fpAtom("a", 0xF0, "t1"),
		fpAtom("b", 0xF1, "t2"),
		fpAtom("c", 0xFF00, "t3"),
	}, false)
	first, _ := c.results()

	// Cleansing an already-cleansed set changes nothing.
	c2 := newCleanser()
	c2.addAll(first, false)
	second, _ := c2.results()
	if !reflect.DeepEqual(atomIDList(first), atomIDList(second)) {
		t.Errorf("second pass changed the set: %v vs %v",
			atomIDList(first), atomIDList(second))
	}
}

func TestCleanserZeroFingerprintAlwaysKept(t *testing.T) {
	c := newCleanser()
	c.add(store.Atom{ID: "n1", StartByte: -1, EndByte: -1}, false)
	c.add(store.Atom{ID: "n2", StartByte: -1, EndByte: -1}, false)
	c.add(store.Atom{ID: "bad", Fingerprint: "zz-not-hex", StartByte: -1, EndByte: -1}, false)

	atoms, _ := c.results()
	if len(atoms) != 3 {
		t.Errorf("kept %d atoms, want 3 (no fingerprint, no dedup)", len(atoms))
	}
}

func TestCleanserTracksEngramFlags(t *testing.T) {
	c := newCleanser()
	c.add(fpAtom("seed", 0xF0), true)
	c.add(fpAtom("plain", 0xFF00), false)

	_, flags := c.results()
	if !reflect.DeepEqual(flags, []bool{true, false}) {
		t.Errorf("engram flags = %v, want [true false]", flags)
	}
}

func TestCleanserBucketsUnion(t *testing.T) {
	c := newCleanser()
	a := fpAtom("orig", 0xF0)
	a.Buckets = []string{"inbox"}
	b := fpAtom("dup", 0xF1)
	b.Buckets = []string{"archive"}
	c.add(a, false)
	c.add(b, false)

	atoms, _ := c.results()
	if !reflect.DeepEqual(atoms[0].Buckets, []string{"inbox", "archive"}) {
		t.Errorf("buckets = %v, want union", atoms[0].Buckets)
	}
}

func atomIDList(atoms []store.Atom) []string {
	ids := make([]string, len(atoms))
	for i, a := range atoms {
		ids[i] = a.ID
	}
	return ids
}
