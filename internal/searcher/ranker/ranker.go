package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/tokenizer"
)

// TitleBoost multiplies the running score of a document each time a query
// term is found in its title. Repeated boosts compound.
const TitleBoost = 1.15

type ScoredDoc struct {
	Index    int            `json:"-"`
	Score    float64        `json:"score"`
	Document index.Document `json:"document"`
}

// Score computes the score of document i for the distinct query terms, in
// order. For every term the document contains, (1 + ln tf) * idf is added
// and, if the term is in the title, the running total is multiplied by
// TitleBoost.
func Score(a *index.Artifact, i int, terms []string) float64 {
	tf := a.TermFreqs[i]
	var title map[string]struct{}
	score := 0.0
	for _, term := range terms {
		freq := tf[term]
		if freq <= 0 {
			continue
		}
		score += (1 + math.Log(float64(freq))) * a.IDF(term)
		if title == nil {
			title = a.TitleTerms(i)
		}
		if _, ok := title[term]; ok {
			score *= TitleBoost
		}
	}
	return score
}

// Rank scores every document of a against terms and returns the documents
// with a positive score, best first. Equal scores keep corpus order. terms
// should already be distinct; see DistinctTerms.
func Rank(terms []string, a *index.Artifact) []ScoredDoc {
	if a == nil || len(terms) == 0 {
		return []ScoredDoc{}
	}
	result := make([]ScoredDoc, 0)
	for i := range a.Docs {
		s := Score(a, i, terms)
		if s <= 0 {
			continue
		}
		result = append(result, ScoredDoc{Index: i, Score: s, Document: a.Docs[i]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}

// RankQuery tokenizes query and ranks a against its distinct terms.
func RankQuery(query string, a *index.Artifact) []ScoredDoc {
	return Rank(DistinctTerms(tokenizer.Tokenize(query)), a)
}

// Search returns the documents matching query in rank order.
func Search(query string, a *index.Artifact) []index.Document {
	ranked := RankQuery(query, a)
	docs := make([]index.Document, len(ranked))
	for i, r := range ranked {
		docs[i] = r.Document
	}
	return docs
}

// DistinctTerms drops repeated tokens, keeping first-occurrence order.
func DistinctTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
