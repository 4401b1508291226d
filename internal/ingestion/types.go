// Package ingestion defines the request and response types of the
// publication ingestion API.
package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
)

// IngestRequest is the body of POST /api/v1/publications: either a single
// publication object or an array of them.
type IngestRequest struct {
	Documents []index.Document
}

func (r *IngestRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty body")
	}
	switch data[0] {
	case '[':
		var docs []index.Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return err
		}
		r.Documents = docs
	case '{':
		var d index.Document
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		r.Documents = []index.Document{d}
	default:
		return fmt.Errorf("expected a publication object or an array of publications")
	}
	return nil
}

// IngestResponse reports how many publications were stored and how many
// were skipped because their pub_url was already known.
type IngestResponse struct {
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Total      int    `json:"total"`
	Status     string `json:"status"`
}
