// Package validator checks publications before they are stored and returns
// per-field error details.
package validator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
)

const (
	MaxDocuments      = 1000
	maxTitleLength    = 1024
	maxAbstractLength = 1048576
	maxURLLength      = 2048
)

// ValidationError holds per-field validation failure messages. Keys are
// "field" for a single document and "[i].field" inside a batch.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocuments checks every document of a request.
func ValidateDocuments(docs []index.Document) error {
	errs := make(map[string]string)
	switch {
	case len(docs) == 0:
		errs["documents"] = "at least one publication is required"
	case len(docs) > MaxDocuments:
		errs["documents"] = fmt.Sprintf("at most %d publications per request", MaxDocuments)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	prefix := func(i int) string {
		if len(docs) == 1 {
			return ""
		}
		return fmt.Sprintf("[%d].", i)
	}
	for i := range docs {
		for field, msg := range validateDocument(&docs[i]) {
			errs[prefix(i)+field] = msg
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateDocument(d *index.Document) map[string]string {
	errs := make(map[string]string)
	title := strings.TrimSpace(d.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if utf8.RuneCountInString(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(d.Abstract) > maxAbstractLength {
		errs["abstract"] = fmt.Sprintf("abstract must be at most %d bytes", maxAbstractLength)
	}
	if d.PubURL != "" {
		if msg := checkURL(d.PubURL); msg != "" {
			errs["pub_url"] = msg
		}
	}
	if d.CUAuthorURL != "" {
		if msg := checkURL(d.CUAuthorURL); msg != "" {
			errs["cu_author_url"] = msg
		}
	}
	return errs
}

func checkURL(raw string) string {
	if len(raw) > maxURLLength {
		return fmt.Sprintf("must be at most %d bytes", maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "must be an absolute http(s) URL"
	}
	return ""
}
