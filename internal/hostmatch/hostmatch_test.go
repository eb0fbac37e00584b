package hostmatch

import "testing"

func TestCompileRejectsDoubleStar(t *testing.T) {
	_, err := Compile([]string{"**.example.com"})
	if err == nil {
		t.Fatal("expected error for ** pattern")
	}
	var ipe *InvalidPatternError
	if !errorsAs(err, &ipe) {
		t.Fatalf("expected InvalidPatternError, got %T: %v", err, err)
	}
}

func errorsAs(err error, target **InvalidPatternError) bool {
	if ipe, ok := err.(*InvalidPatternError); ok {
		*target = ipe
		return true
	}
	return false
}

func TestCompileRejectsNulAndNewline(t *testing.T) {
	cases := []string{"foo\x00bar", "foo\nbar"}
	for _, c := range cases {
		if _, err := Compile([]string{c}); err == nil {
			t.Errorf("expected error for pattern %q", c)
		}
	}
}

func TestMatchesWildcard(t *testing.T) {
	m, err := Compile([]string{"*.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Matches("api.example.com") {
		t.Error("expected api.example.com to match *.example.com")
	}
	if m.Matches("example.com") {
		t.Error("did not expect bare example.com to match *.example.com")
	}
	if m.Matches("api.example.org") {
		t.Error("did not expect api.example.org to match")
	}
}

func TestMatchesWithSpecificity(t *testing.T) {
	m, err := Compile([]string{"*.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	spec, ok := m.MatchesWithSpecificity("a.b.example.com")
	if !ok {
		t.Fatal("expected match")
	}
	if spec != 4 {
		t.Errorf("expected specificity 4, got %d", spec)
	}
}

func TestMatchesSingleCharWildcard(t *testing.T) {
	m, err := Compile([]string{"ap?.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Matches("api.example.com") {
		t.Error("expected ap?.example.com to match api.example.com")
	}
	if m.Matches("apiv2.example.com") {
		t.Error("single-char wildcard should not match multiple characters")
	}
}

func TestNoMatchReturnsFalse(t *testing.T) {
	m, err := Compile([]string{"*.internal.corp"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.MatchesWithSpecificity("example.com"); ok {
		t.Error("expected no match")
	}
}
