package fingerprint

import "testing"

func TestHashStability(t *testing.T) {
	a := Hash("the deploy failed because the migration ran twice")
	b := Hash("the deploy failed because the migration ran twice")
	if a != b {
		t.Errorf("same content hashed differently: %x vs %x", a, b)
	}
	if a == 0 {
		t.Error("non-empty content hashed to zero")
	}
}

func TestHashEmptyContent(t *testing.T) {
	if got := Hash(""); got != 0 {
		t.Errorf("Hash(empty) = %x, want 0", got)
	}
	if got := Hash("?!... ---"); got != 0 {
		t.Errorf("Hash(punctuation only) = %x, want 0", got)
	}
}

func TestNearDuplicatesLandClose(t *testing.T) {
	base := "standup notes for the infra team covering the deploy incident and the oncall handoff process"
	edited := "standup notes for the infra team covering the deploy incident and the oncall handoff steps"
	unrelated := "grocery list apples bananas flour yeast butter"

	dNear := Distance(Hash(base), Hash(edited))
	dFar := Distance(Hash(base), Hash(unrelated))
	if dNear >= dFar {
		t.Errorf("near edit distance %d not below unrelated distance %d", dNear, dFar)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0xFF, 0x00, 8},
		{0xFFFFFFFFFFFFFFFF, 0, 64},
		{0b1010, 0b0101, 4},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity(42, 42); got != 1.0 {
		t.Errorf("Similarity(identical) = %v, want 1.0", got)
	}
	if got := Similarity(0xFFFFFFFFFFFFFFFF, 0); got != 0.0 {
		t.Errorf("Similarity(inverse) = %v, want 0.0", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   uint64
		wantOK bool
	}{
		{"00000000000000ff", 0xFF, true},
		{"ff", 0xFF, true},
		{"0xff", 0xFF, true},
		{"F", 0xF, true},
		{" deadbeef ", 0xDEADBEEF, true},
		{"", 0, false},
		{"zz", 0, false},
		{"00000000000000ff00", 0, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Parse(%q) = (%x, %v), want (%x, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	fp := Hash("round trip me")
	parsed, ok := Parse(Format(fp))
	if !ok || parsed != fp {
		t.Errorf("Parse(Format(%x)) = (%x, %v)", fp, parsed, ok)
	}
}

func TestParseDistanceMalformed(t *testing.T) {
	tests := []struct {
		name, a, b string
		want       int
	}{
		{"both valid identical", "ff", "ff", 0},
		{"first malformed", "not-hex", "ff", MaxDistance},
		{"second malformed", "ff", "", MaxDistance},
		{"both malformed", "x", "y", MaxDistance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("ParseDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestKeyHashNormalizes(t *testing.T) {
	if KeyHash("Deploy Incident") != KeyHash("  deploy incident ") {
		t.Error("KeyHash should be case- and whitespace-insensitive")
	}
	if KeyHash("a") == KeyHash("b") {
		t.Error("distinct keys collided")
	}
	if len(KeyHash("x")) != 32 {
		t.Errorf("KeyHash length = %d, want 32 hex digits", len(KeyHash("x")))
	}
}
