package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
)

// Format describes how an artifact file was interpreted.
type Format string

const (
	FormatCurrent Format = "current"
	// FormatLegacy is a bare JSON array of documents with no precomputed
	// statistics.
	FormatLegacy Format = "legacy"
	// FormatRebuilt is an object whose tok_docs or idf were missing or did
	// not line up with docs, or whose docs repeated a pub_url.
	FormatRebuilt Format = "rebuilt"
)

type rawFile struct {
	Docs    *[]index.Document   `json:"docs"`
	TokDocs *[]map[string]int   `json:"tok_docs"`
	IDF     *map[string]float64 `json:"idf"`
	BuiltAt *int64              `json:"built_at"`
}

// Load reads the artifact at path. Legacy arrays are deduplicated and
// rebuilt in memory; objects with missing or misaligned statistics, or with
// repeated pub_urls, are rebuilt from their deduplicated docs. A missing file yields ErrArtifactNotFound and an
// unparseable one ErrArtifactCorrupt.
func Load(path string) (*index.Artifact, error) {
	a, _, err := LoadFormat(path)
	return a, err
}

// LoadFormat is Load that also reports which format was found.
func LoadFormat(path string) (*index.Artifact, Format, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, "", err
	}
	return Decode(data, path)
}

// Decode parses artifact bytes; name is used only in errors and logs.
func Decode(data []byte, name string) (*index.Artifact, Format, error) {
	logger := slog.Default().With("component", "artifact", "path", name)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", apperrors.Newf(apperrors.ErrArtifactCorrupt, http.StatusServiceUnavailable, "%s is empty", name)
	}

	switch trimmed[0] {
	case '[':
		var docs []index.Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, "", corrupt(name, err)
		}
		logger.Info("legacy artifact, rebuilding statistics", "documents", len(docs))
		return index.Build(docs, time.Now().Unix()), FormatLegacy, nil
	case '{':
		var raw rawFile
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, "", corrupt(name, err)
		}
		if raw.Docs == nil {
			return nil, "", apperrors.Newf(apperrors.ErrArtifactCorrupt, http.StatusServiceUnavailable, "%s has no docs field", name)
		}
		docs := *raw.Docs
		builtAt := time.Now().Unix()
		if raw.BuiltAt != nil {
			builtAt = *raw.BuiltAt
		}
		if raw.TokDocs == nil || raw.IDF == nil || len(*raw.TokDocs) != len(docs) {
			tokDocs := -1
			if raw.TokDocs != nil {
				tokDocs = len(*raw.TokDocs)
			}
			logger.Warn("artifact statistics missing or misaligned, rebuilding",
				"documents", len(docs),
				"tok_docs", tokDocs,
				"has_idf", raw.IDF != nil,
			)
			return index.Build(docs, builtAt), FormatRebuilt, nil
		}
		if unique := index.Dedupe(docs); len(unique) != len(docs) {
			logger.Warn("artifact repeats publication urls, rebuilding",
				"documents", len(docs),
				"unique", len(unique),
			)
			return index.Build(unique, builtAt), FormatRebuilt, nil
		}
		tf := *raw.TokDocs
		for i := range tf {
			if tf[i] == nil {
				tf[i] = map[string]int{}
			}
		}
		return index.NewArtifact(docs, tf, *raw.IDF, builtAt), FormatCurrent, nil
	default:
		return nil, "", apperrors.Newf(apperrors.ErrArtifactCorrupt, http.StatusServiceUnavailable, "%s is neither an object nor an array", name)
	}
}

// ReadDocuments returns the raw documents stored at path, which may be a
// plain JSON array of publications or a full artifact. No deduplication
// is applied.
func ReadDocuments(path string) ([]index.Document, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []index.Document{}, nil
	}
	if trimmed[0] == '{' {
		var raw rawFile
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, corrupt(path, err)
		}
		if raw.Docs == nil {
			return []index.Document{}, nil
		}
		return *raw.Docs, nil
	}
	var docs []index.Document
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, corrupt(path, err)
	}
	return docs, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrArtifactNotFound, http.StatusServiceUnavailable, "%s does not exist", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func corrupt(name string, err error) error {
	return apperrors.Newf(apperrors.ErrArtifactCorrupt, http.StatusServiceUnavailable, "parsing %s: %v", name, err)
}
