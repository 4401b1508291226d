package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
)

func TestValidateDocuments(t *testing.T) {
	valid := index.Document{Title: "Corporate Governance", PubURL: "https://example.org/p/1"}
	tests := []struct {
		name       string
		docs       []index.Document
		wantFields []string
	}{
		{"valid single", []index.Document{valid}, nil},
		{"valid without url", []index.Document{{Title: "No URL"}}, nil},
		{"empty request", nil, []string{"documents"}},
		{"missing title", []index.Document{{Title: "  "}}, []string{"title"}},
		{"long title", []index.Document{{Title: strings.Repeat("é", 1025)}}, []string{"title"}},
		{"title at limit", []index.Document{{Title: strings.Repeat("é", 1024)}}, nil},
		{"huge abstract", []index.Document{{Title: "t", Abstract: strings.Repeat("a", 1048577)}}, []string{"abstract"}},
		{"relative url", []index.Document{{Title: "t", PubURL: "/p/1"}}, []string{"pub_url"}},
		{"ftp url", []index.Document{{Title: "t", PubURL: "ftp://example.org/x"}}, []string{"pub_url"}},
		{"long url", []index.Document{{Title: "t", PubURL: "https://example.org/" + strings.Repeat("a", 2048)}}, []string{"pub_url"}},
		{"bad author url", []index.Document{{Title: "t", CUAuthorURL: "nope"}}, []string{"cu_author_url"}},
		{"batch indexes fields", []index.Document{valid, {Title: ""}}, []string{"[1].title"}},
		{"too many", make([]index.Document, MaxDocuments+1), []string{"documents"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocuments(tt.docs)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			for _, f := range tt.wantFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, verr.Fields)
				}
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.wantFields)
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"title": "a", "abstract": "b"}}
	if got := err.Error(); got != "abstract:b; title:a" {
		t.Errorf("Error() = %q", got)
	}
}
