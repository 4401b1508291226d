package parser

import (
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/ranker"
)

// QueryPlan is a tokenized query. Terms are distinct and keep the order in
// which they first appear; scoring depends on that order.
type QueryPlan struct {
	RawQuery string
	Terms    []string
	Empty    bool
}

func Parse(query string) *QueryPlan {
	terms := ranker.DistinctTerms(tokenizer.Tokenize(query))
	return &QueryPlan{
		RawQuery: query,
		Terms:    terms,
		Empty:    len(terms) == 0,
	}
}
