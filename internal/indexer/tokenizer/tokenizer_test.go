package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"lowercases", "Corporate GOVERNANCE", "corporate governance"},
		{"punctuation becomes space", "finance,innovation;risk", "finance innovation risk"},
		{"hyphen kept", "Micro-Finance", "micro-finance"},
		{"underscore kept", "snake_case", "snake_case"},
		{"collapses whitespace", "  a \t\n  b  ", "a b"},
		{"only punctuation", "!!! ... ???", ""},
		{"digits kept", "ESG 2023: Q4", "esg 2023 q4"},
		{"unicode letters kept", "Économie d'Été", "économie d été"},
		{"apostrophe splits", "Lis's", "lis s"},
		{"em dash is punctuation", "banks—risk", "banks risk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"whitespace only", " \t ", []string{}},
		{"simple", "Corporate Governance", []string{"corporate", "governance"}},
		{"keeps duplicates in order", "finance risk finance", []string{"finance", "risk", "finance"}},
		{"lone hyphen is a token", "a - b", []string{"a", "-", "b"}},
		{"author name", "Piotr Lis", []string{"piotr", "lis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Corporate Governance & Firm-Level Risk (2019)",
		"  ÉCONOMIE\tde l'Été — 3rd ed.  ",
		"İstanbul Σίσυφος ǅemal",
		"a--b __c__ - -",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	in := "Financial Inclusion, Microfinance and Poverty: evidence from 2015-2020"
	first := Tokenize(in)
	for i := 0; i < 10; i++ {
		if got := Tokenize(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}

func TestTokensHaveNoSeparators(t *testing.T) {
	for _, tok := range Tokenize("x ,. y z w") {
		if tok == "" || strings.ContainsAny(tok, " \t\n  ") {
			t.Errorf("bad token %q", tok)
		}
	}
}

func TestTermSet(t *testing.T) {
	set := TermSet("Finance and finance AND governance")
	want := map[string]struct{}{"finance": {}, "and": {}, "governance": {}}
	if !reflect.DeepEqual(set, want) {
		t.Errorf("TermSet = %v, want %v", set, want)
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat("Corporate governance, board diversity and firm performance: evidence from UK-listed firms. ", 20)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
