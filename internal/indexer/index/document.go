package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is one publication record as emitted by the crawler. Only
// Title, Abstract, CUAuthor, Category and the co-author names are indexed;
// the rest is carried through untouched.
type Document struct {
	Title       string     `json:"title"`
	PubURL      string     `json:"pub_url"`
	Date        string     `json:"date"`
	CUAuthor    string     `json:"cu_author"`
	CUAuthorURL string     `json:"cu_author_url"`
	CoAuthors   []CoAuthor `json:"co_authors"`
	Abstract    string     `json:"abstract"`
	Category    Categories `json:"category"`
}

// CoAuthor is an entry of Document.CoAuthors.
type CoAuthor struct {
	Name string `json:"name"`
}

// Categories accepts either a JSON string or a JSON array of strings; a
// bare string decodes to a one-element list. null decodes to an empty list.
type Categories []string

func (c *Categories) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding category string: %w", err)
		}
		if s == "" {
			*c = nil
		} else {
			*c = Categories{s}
		}
		return nil
	}
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding category list: %w", err)
	}
	out := make(Categories, 0, len(raw))
	for _, s := range raw {
		if s != nil {
			out = append(out, *s)
		}
	}
	*c = out
	return nil
}

// MarshalJSON always writes a list so persisted artifacts have one shape.
func (c Categories) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(c))
}

// MarshalJSON writes missing lists as [] rather than null.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	p := plain(d)
	if p.CoAuthors == nil {
		p.CoAuthors = []CoAuthor{}
	}
	return json.Marshal(p)
}

// IndexText is the text the builder tokenizes for d: title, abstract,
// cu_author, the categories and every co-author name, joined by single
// spaces in that order.
func (d Document) IndexText() string {
	parts := make([]string, 0, 4+len(d.CoAuthors))
	parts = append(parts,
		d.Title,
		d.Abstract,
		d.CUAuthor,
		strings.Join(d.Category, " "),
	)
	for _, ca := range d.CoAuthors {
		parts = append(parts, ca.Name)
	}
	return strings.Join(parts, " ")
}

// Dedupe keeps the first document for every non-empty pub_url. Documents
// without a pub_url are all kept. Order is preserved.
func Dedupe(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		key := strings.TrimSpace(d.PubURL)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, d)
	}
	return out
}
