package locale

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Language
		err  error
	}{
		{"EN", EN, nil},
		{"fr", FR, nil},
		{" ar ", AR, nil},
		{"de", "", ErrUnknownLanguage},
		{"", "", ErrUnknownLanguage},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if !errors.Is(err, tt.err) {
			t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.err)
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNextCycles(t *testing.T) {
	l := EN
	seen := []Language{l}
	for i := 0; i < 3; i++ {
		l = l.Next()
		seen = append(seen, l)
	}
	want := []Language{EN, FR, AR, EN}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("cycle step %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestValidAndName(t *testing.T) {
	if !AR.Valid() || Language("ar").Valid() || Language("XX").Valid() {
		t.Fatalf("unexpected validity results")
	}
	if AR.Name() != "Arabic" || FR.Name() != "French" || EN.Name() != "English" {
		t.Fatalf("unexpected language names")
	}
	if !AR.RTL() || EN.RTL() {
		t.Fatalf("unexpected RTL flags")
	}
}
