// Package source provides the document sources an index is built from.
package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
)

// FileSource reads a crawler dump: a JSON array of documents or an existing
// artifact whose docs are re-indexed.
type FileSource struct {
	path string
}

func File(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Documents(ctx context.Context) ([]index.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := artifact.ReadDocuments(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading documents from %s: %w", s.path, err)
	}
	return docs, nil
}
