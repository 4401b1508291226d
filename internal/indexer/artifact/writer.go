// Package artifact persists built indexes as a single JSON document and
// loads them back, including the legacy bare-array format.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
)

// file is the on-disk shape of an artifact.
type file struct {
	Docs    []index.Document   `json:"docs"`
	TokDocs []map[string]int   `json:"tok_docs"`
	IDF     map[string]float64 `json:"idf"`
	BuiltAt int64              `json:"built_at"`
}

// Writer saves artifacts to a fixed path.
type Writer struct {
	path string
}

// NewWriter creates a Writer that replaces the artifact at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the destination the writer replaces.
func (w *Writer) Path() string { return w.path }

// Save atomically replaces the artifact file. It writes to a .tmp sibling,
// syncs it and renames over the destination, so readers see either the old
// or the new artifact and never a partial one.
func (w *Writer) Save(a *index.Artifact) error {
	if a == nil {
		return fmt.Errorf("cannot save nil artifact")
	}
	if len(a.Docs) != len(a.TermFreqs) {
		return fmt.Errorf("artifact misaligned: %d docs, %d term maps", len(a.Docs), len(a.TermFreqs))
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(toFile(a)); err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp artifact file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("renaming artifact file: %w", err)
	}
	committed = true
	return nil
}

func toFile(a *index.Artifact) file {
	docs := a.Docs
	if docs == nil {
		docs = []index.Document{}
	}
	tf := a.TermFreqs
	if tf == nil {
		tf = []map[string]int{}
	}
	idf := a.IDFs
	if idf == nil {
		idf = map[string]float64{}
	}
	return file{Docs: docs, TokDocs: tf, IDF: idf, BuiltAt: a.BuiltAt}
}
