package executor

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/tracing"
)

const (
	StatusOK            = "ok"
	StatusNoResults     = "no_results"
	StatusAwaitingInput = "awaiting_input"
)

const (
	SortRelevance = "relevance"
	SortYear      = "year"
)

// UnknownYear is reported for documents whose date has no recognizable year.
const UnknownYear = -1

var yearPattern = regexp.MustCompile(`\b(20\d{2}|19\d{2})\b`)

type Hit struct {
	Document index.Document `json:"document"`
	Score    float64        `json:"score"`
	Year     int            `json:"year"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	Status    string   `json:"status"`
	TotalHits int      `json:"total_hits"`
	Offset    int      `json:"offset"`
	Limit     int      `json:"limit"`
	Sort      string   `json:"sort"`
	BuiltAt   int64    `json:"built_at"`
	Results   []Hit    `json:"results"`
}

type Options struct {
	Limit  int
	Offset int
	Sort   string
}

// Provider supplies the artifact to search.
type Provider interface {
	Artifact() *index.Artifact
}

type Executor struct {
	provider     Provider
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

func New(provider Provider, defaultLimit, maxLimit int) *Executor {
	if defaultLimit <= 0 {
		defaultLimit = 25
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Executor{
		provider:     provider,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       slog.Default().With("component", "query-executor"),
	}
}

// Normalize fills defaults into opts and validates it.
func (e *Executor) Normalize(opts Options) (Options, error) {
	if opts.Sort == "" {
		opts.Sort = SortRelevance
	}
	if opts.Sort != SortRelevance && opts.Sort != SortYear {
		return opts, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"sort must be %q or %q", SortRelevance, SortYear)
	}
	if opts.Offset < 0 {
		return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "offset must not be negative")
	}
	if opts.Limit < 0 {
		return opts, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must not be negative")
	}
	if opts.Limit == 0 {
		opts.Limit = e.defaultLimit
	}
	if opts.Limit > e.maxLimit {
		opts.Limit = e.maxLimit
	}
	return opts, nil
}

// Execute ranks the current artifact against plan and returns one page of
// results. Re-sorting by year and pagination happen after ranking and never
// change scores.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, opts Options) (*SearchResult, error) {
	opts, err := e.Normalize(opts)
	if err != nil {
		return nil, err
	}
	a := e.provider.Artifact()
	result := &SearchResult{
		Query:   plan.RawQuery,
		Terms:   plan.Terms,
		Offset:  opts.Offset,
		Limit:   opts.Limit,
		Sort:    opts.Sort,
		Results: []Hit{},
	}
	// An empty query is answered without an index.
	if plan.Empty {
		if a != nil {
			result.BuiltAt = a.BuiltAt
		}
		result.Status = StatusAwaitingInput
		return result, nil
	}
	if a == nil {
		return nil, apperrors.New(apperrors.ErrArtifactNotFound, http.StatusServiceUnavailable, "no index loaded")
	}
	result.BuiltAt = a.BuiltAt
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, rankSpan := tracing.StartChildSpan(ctx, "rank")
	ranked := ranker.Rank(plan.Terms, a)
	rankSpan.SetAttr("candidates", a.Len())
	rankSpan.End()

	hits := make([]Hit, len(ranked))
	for i, r := range ranked {
		hits[i] = Hit{Document: r.Document, Score: r.Score, Year: ExtractYear(r.Document.Date)}
	}
	if opts.Sort == SortYear {
		_, sortSpan := tracing.StartChildSpan(ctx, "sort_year")
		SortByYear(hits)
		sortSpan.End()
	}

	result.TotalHits = len(hits)
	result.Results = Page(hits, opts.Offset, opts.Limit)
	if len(hits) == 0 {
		result.Status = StatusNoResults
	} else {
		result.Status = StatusOK
	}
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
	)
	return result, nil
}

// ExtractYear returns the first four-digit year between 1900 and 2099 in
// date, or UnknownYear.
func ExtractYear(date string) int {
	m := yearPattern.FindStringSubmatch(date)
	if m == nil {
		return UnknownYear
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return UnknownYear
	}
	return y
}

// SortByYear orders hits newest first. Documents with the same year keep
// their rank order; unknown years sort last.
func SortByYear(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Year > hits[j].Year
	})
}

// Page returns hits[offset:offset+limit], clamped to the slice.
func Page(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return []Hit{}
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}
