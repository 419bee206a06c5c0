package version

import "testing"

func TestParseValid(t *testing.T) {
	cases := map[string]Version{
		"1.2.3":      {1, 2, 3, 0},
		"1.2.3.4":    {1, 2, 3, 4},
		"v1.2.3.4":   {1, 2, 3, 4},
		"V1.2.3.4":   {1, 2, 3, 4},
		"01.02.03":   {1, 2, 3, 0},
		"0.0.0.0":    {0, 0, 0, 0},
		"999999.1.1": {999999, 1, 1, 0},
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		"",
		"v",
		"1.2",
		"1.2.3.4.5",
		"1.2.x",
		"1.2.3 ",
		"1.2.3.4garbage",
		"1000000.0.0",
		"-1.2.3",
	}
	for _, in := range cases {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	versions := []Version{{1, 2, 3, 4}, {0, 0, 0, 0}, {10, 20, 30, 40}}
	for _, v := range versions {
		parsed, err := Parse(v.String())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", v.String(), err)
		}
		if parsed != v {
			t.Errorf("round trip mismatch: %+v -> %q -> %+v", v, v.String(), parsed)
		}
	}
}

func TestCompareDetailedReflexive(t *testing.T) {
	vs := []Version{{1, 2, 3, 4}, {0, 0, 0, 0}, {9, 9, 9, 9}}
	for _, v := range vs {
		if got := CompareDetailed(v, v); got != Equal {
			t.Errorf("CompareDetailed(%v, %v) = %v, want Equal", v, v, got)
		}
	}
}

func TestCompareDetailedScenarios(t *testing.T) {
	cases := []struct {
		name           string
		current, target Version
		want           Comparison
	}{
		{"equal", Version{1, 2, 3, 4}, Version{1, 2, 3, 4}, Equal},
		{"same base newer build", Version{1, 2, 3, 5}, Version{1, 2, 3, 4}, Newer},
		{"same base patch upgradeable", Version{1, 2, 3, 0}, Version{1, 2, 3, 4}, PatchUpgradeable},
		{"base newer", Version{1, 2, 4, 0}, Version{1, 2, 3, 9}, Newer},
		{"base older - full required", Version{1, 2, 3, 5}, Version{1, 3, 0, 0}, FullUpgradeRequired},
		{"current newer than target", Version{1, 2, 3, 9}, Version{1, 2, 3, 4}, Newer},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CompareDetailed(c.current, c.target)
			if got != c.want {
				t.Errorf("CompareDetailed(%v, %v) = %v, want %v", c.current, c.target, got, c.want)
			}
		})
	}
}

// TestCompareDetailedAsymmetry checks that Newer in one direction implies
// a non-Newer relation in reverse, and that no relation other than Equal
// is symmetric.
func TestCompareDetailedAsymmetry(t *testing.T) {
	a := Version{1, 3, 0, 0}
	b := Version{1, 2, 3, 9}

	fwd := CompareDetailed(a, b)
	rev := CompareDetailed(b, a)

	if fwd != Newer {
		t.Fatalf("expected Newer, got %v", fwd)
	}
	if rev != FullUpgradeRequired {
		t.Errorf("expected reverse comparison to be FullUpgradeRequired, got %v", rev)
	}

	// Equal is the only self-symmetric relation.
	eq1 := CompareDetailed(a, a)
	eq2 := CompareDetailed(a, a)
	if eq1 != Equal || eq2 != Equal {
		t.Errorf("equal versions must compare Equal in both directions")
	}
}

func TestBaseVersion(t *testing.T) {
	v := Version{1, 2, 3, 4}
	if got := v.Base(); got != (Version{1, 2, 3, 0}) {
		t.Errorf("Base() = %+v, want {1,2,3,0}", got)
	}
}

func TestPatchCompatible(t *testing.T) {
	a := Version{1, 2, 3, 0}
	b := Version{1, 2, 3, 9}
	c := Version{1, 2, 4, 0}
	if !a.PatchCompatible(b) {
		t.Errorf("expected %v and %v to be patch-compatible", a, b)
	}
	if a.PatchCompatible(c) {
		t.Errorf("expected %v and %v not to be patch-compatible", a, c)
	}
}
