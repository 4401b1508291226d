package index

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"hash"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/tokenizer"
)

// UnknownTermIDF is the weight used for a query term absent from the
// vocabulary.
const UnknownTermIDF = 0.5

// Artifact is a built, immutable index: the documents, one term-frequency
// map per document (aligned by position) and the corpus IDF table.
// Artifacts are never mutated after Build or Load; a rebuild produces a new one.
type Artifact struct {
	Docs      []Document
	TermFreqs []map[string]int
	IDFs      map[string]float64
	BuiltAt   int64

	titleOnce  sync.Once
	titleTerms []map[string]struct{}

	fpOnce      sync.Once
	fingerprint string
}

// NewArtifact wraps already-computed parts. The caller guarantees that
// len(docs) == len(termFreqs).
func NewArtifact(docs []Document, termFreqs []map[string]int, idfs map[string]float64, builtAt int64) *Artifact {
	if idfs == nil {
		idfs = map[string]float64{}
	}
	return &Artifact{
		Docs:      docs,
		TermFreqs: termFreqs,
		IDFs:      idfs,
		BuiltAt:   builtAt,
	}
}

// Len returns the number of indexed documents.
func (a *Artifact) Len() int { return len(a.Docs) }

// VocabularySize returns the number of distinct indexed terms.
func (a *Artifact) VocabularySize() int { return len(a.IDFs) }

// IDF returns the weight of term, or UnknownTermIDF if the corpus never saw it.
func (a *Artifact) IDF(term string) float64 {
	if w, ok := a.IDFs[term]; ok {
		return w
	}
	return UnknownTermIDF
}

// TitleTerms returns the distinct title tokens of document i. The sets are
// computed once per artifact on first use and are not persisted.
func (a *Artifact) TitleTerms(i int) map[string]struct{} {
	a.titleOnce.Do(func() {
		sets := make([]map[string]struct{}, len(a.Docs))
		for j, d := range a.Docs {
			sets[j] = tokenizer.TermSet(d.Title)
		}
		a.titleTerms = sets
	})
	return a.titleTerms[i]
}

// Fingerprint identifies the artifact's content: two artifacts with the same
// fingerprint rank every query identically. It is stable across processes
// and restarts.
func (a *Artifact) Fingerprint() string {
	a.fpOnce.Do(func() {
		h := sha256.New()
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(a.BuiltAt))
		h.Write(buf[:])
		for i, d := range a.Docs {
			data, _ := json.Marshal(d)
			writeField(h, data)
			if i < len(a.TermFreqs) {
				for _, term := range sortedKeys(a.TermFreqs[i]) {
					writeField(h, []byte(term))
					writeField(h, []byte(strconv.Itoa(a.TermFreqs[i][term])))
				}
			}
			h.Write([]byte{0xff})
		}
		for _, term := range sortedKeys(a.IDFs) {
			writeField(h, []byte(term))
			writeField(h, []byte(strconv.FormatFloat(a.IDFs[term], 'g', -1, 64)))
		}
		a.fingerprint = hex.EncodeToString(h.Sum(nil)[:16])
	})
	return a.fingerprint
}

// writeField length-prefixes b so adjacent fields cannot run together.
func writeField(h hash.Hash, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Build deduplicates docs by pub_url and computes the term frequencies and
// IDF table over the survivors. builtAt is stored as-is; pass zero to use
// the current time.
func Build(docs []Document, builtAt int64) *Artifact {
	if builtAt == 0 {
		builtAt = time.Now().Unix()
	}
	unique := Dedupe(docs)
	termFreqs := make([]map[string]int, len(unique))
	docFreq := make(map[string]int)
	for i, d := range unique {
		tf := TermFrequencies(tokenizer.Tokenize(d.IndexText()))
		termFreqs[i] = tf
		for term := range tf {
			docFreq[term]++
		}
	}
	return NewArtifact(unique, termFreqs, ComputeIDF(docFreq, len(unique)), builtAt)
}

// TermFrequencies counts occurrences of each token.
func TermFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// ComputeIDF returns ln((N+1)/(df+0.5)) + 1 for every term in docFreq.
func ComputeIDF(docFreq map[string]int, totalDocs int) map[string]float64 {
	idfs := make(map[string]float64, len(docFreq))
	n := float64(totalDocs)
	for term, df := range docFreq {
		idfs[term] = math.Log((n+1)/(float64(df)+0.5)) + 1
	}
	return idfs
}
