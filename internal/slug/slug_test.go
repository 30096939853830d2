package slug_test

import (
	"errors"
	"strings"
	"testing"

	"reqcore/internal/slug"
	"reqcore/pkg/domain"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Acme", "acme"},
		{"spaces", "Acme Rockets", "acme-rockets"},
		{"punctuation run", "Acme -- Rockets!!", "acme-rockets"},
		{"leading trailing junk", "  ~Acme~  ", "acme"},
		{"mixed unicode", "Café Überwald", "caf-berwald"},
		{"digits kept", "v2 Launch Plan", "v2-launch-plan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := slug.Normalize(tc.input)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Acme Rockets", "already-canonical", "A B C  D", "x1-y2"}
	for _, in := range inputs {
		once, err := slug.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		twice, err := slug.Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", once, err)
		}
		if once != twice {
			t.Fatalf("normalization not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeRejectsNonLetterStart(t *testing.T) {
	for _, in := range []string{"", "  ", "123", "42-launch", "---", "!!!"} {
		_, err := slug.Normalize(in)
		var invalid domain.InvalidSlugError
		if !errors.As(err, &invalid) {
			t.Fatalf("Normalize(%q) err = %v, want InvalidSlugError", in, err)
		}
	}
}

// digits are allowed mid-slug; the first byte must be a letter
func TestNormalizeRejectsDigitStart(t *testing.T) {
	if _, err := slug.Normalize("2fast"); err == nil {
		t.Fatal("expected error for digit-leading slug")
	}
}

func TestDeriveFromName(t *testing.T) {
	got, err := slug.DeriveFromName("Acme Rockets", "fallback")
	if err != nil {
		t.Fatalf("DeriveFromName: %v", err)
	}
	if got != "acme-rockets" {
		t.Fatalf("DeriveFromName = %q", got)
	}

	got, err = slug.DeriveFromName("!!!", "org-x7k2")
	if err != nil {
		t.Fatalf("DeriveFromName fallback: %v", err)
	}
	if got != "org-x7k2" {
		t.Fatalf("DeriveFromName fallback = %q", got)
	}

	if _, err := slug.DeriveFromName("!!!", "123"); err == nil {
		t.Fatal("expected error when both name and fallback are unusable")
	}
}

func TestExternalID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 256; i++ {
		id := slug.ExternalID(domain.EntityRequirement)
		if !strings.HasPrefix(id, "REQ-") {
			t.Fatalf("requirement external id %q missing prefix", id)
		}
		if len(id) != len("REQ-")+8 {
			t.Fatalf("external id %q has unexpected length", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate external id %q in 256 draws", id)
		}
		seen[id] = struct{}{}
	}
	if id := slug.ExternalID(domain.EntityTest); !strings.HasPrefix(id, "TST-") {
		t.Fatalf("test external id %q missing prefix", id)
	}
}

func TestRandomSuffix(t *testing.T) {
	for i := 0; i < 64; i++ {
		s := slug.RandomSuffix(6)
		if len(s) != 6 {
			t.Fatalf("suffix %q wrong length", s)
		}
		if s[0] < 'a' || s[0] > 'z' {
			t.Fatalf("suffix %q does not start with a letter", s)
		}
		if _, err := slug.Normalize(s); err != nil {
			t.Fatalf("suffix %q not a valid slug: %v", s, err)
		}
	}
}
