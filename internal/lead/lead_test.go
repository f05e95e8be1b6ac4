package lead

import "testing"

func TestIdentityKeyNormalizes(t *testing.T) {
	t.Parallel()
	a := Lead{Name: "Acme Ltd", Address: "1 High Street"}
	b := Lead{Name: "  ACME LTD ", Address: "1 HIGH STREET  "}
	if a.IdentityKey() != b.IdentityKey() {
		t.Fatalf("keys differ: %q vs %q", a.IdentityKey(), b.IdentityKey())
	}
}

func TestPassesQuality(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		completeness int
		min          int
		want         bool
	}{
		{"above threshold", 80, 30, true},
		{"exactly threshold", 30, 30, true},
		{"below threshold", 10, 30, false},
		{"threshold disabled", 0, 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := PassesQuality(Lead{Completeness: tt.completeness}, tt.min)
			if got != tt.want {
				t.Fatalf("PassesQuality = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureID(t *testing.T) {
	t.Parallel()
	l := Lead{Name: "x"}
	l.EnsureID()
	if l.ID == "" {
		t.Fatal("expected generated ID")
	}
	prev := l.ID
	l.EnsureID()
	if l.ID != prev {
		t.Fatal("EnsureID must not replace an existing ID")
	}
}
