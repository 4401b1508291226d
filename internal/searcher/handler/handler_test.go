package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingTracker) Track(_ string, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := event.(analytics.SearchEvent); ok {
		r.events = append(r.events, e)
	}
}

type fixture struct {
	mux     *http.ServeMux
	store   *store.Store
	tracker *recordingTracker
	path    string
}

func newFixture(t *testing.T, load bool) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	docs := []index.Document{
		{Title: "Corporate Governance and Finance", PubURL: "u1", Date: "2015"},
		{Title: "Microfinance Governance", PubURL: "u2", Date: "2022"},
	}
	if err := artifact.NewWriter(path).Save(index.Build(docs, 1234)); err != nil {
		t.Fatal(err)
	}
	st := store.New(path, nil)
	if load {
		if err := st.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	tracker := &recordingTracker{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(executor.New(st, 10, 50), st, nil, tracker, m)
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, store: st, tracker: tracker, path: path}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestSearch(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(http.MethodGet, "/api/v1/search?q=governance+finance")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[executor.SearchResult](t, rec)
	if res.Status != executor.StatusOK || res.TotalHits != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].Document.PubURL != "u1" {
		t.Errorf("top result = %q", res.Results[0].Document.PubURL)
	}
	if res.BuiltAt != 1234 {
		t.Errorf("built_at = %d", res.BuiltAt)
	}
	if len(f.tracker.events) != 1 || f.tracker.events[0].Type != analytics.EventSearch {
		t.Errorf("tracked = %+v", f.tracker.events)
	}
}

func TestSearchYearSortAndPaging(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(http.MethodGet, "/api/v1/search?q=governance&sort=year&limit=1&offset=0")
	res := decode[executor.SearchResult](t, rec)
	if len(res.Results) != 1 || res.Results[0].Year != 2022 || res.TotalHits != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(http.MethodGet, "/api/v1/search?q=")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[executor.SearchResult](t, rec)
	if res.Status != executor.StatusAwaitingInput || len(res.Results) != 0 {
		t.Errorf("result = %+v", res)
	}
	if f.tracker.events[0].Type != analytics.EventAwaitInput {
		t.Errorf("tracked type = %q", f.tracker.events[0].Type)
	}
}

func TestSearchInvalidParams(t *testing.T) {
	f := newFixture(t, true)
	for _, target := range []string{
		"/api/v1/search?q=x&limit=abc",
		"/api/v1/search?q=x&limit=0",
		"/api/v1/search?q=x&offset=-2",
		"/api/v1/search?q=x&sort=title",
	} {
		if rec := f.do(http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestSearchWithoutArtifact(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/v1/search?q=governance")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if f.tracker.events[0].Type != analytics.EventSearchError {
		t.Errorf("tracked type = %q", f.tracker.events[0].Type)
	}
	if rec := f.do(http.MethodGet, "/api/v1/index/stats"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stats status = %d", rec.Code)
	}
}

func TestEmptySearchWithoutArtifact(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/v1/search?q=")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := decode[executor.SearchResult](t, rec)
	if res.Status != executor.StatusAwaitingInput {
		t.Errorf("status = %q, want %q", res.Status, executor.StatusAwaitingInput)
	}
}

func TestReloadSwapsArtifact(t *testing.T) {
	f := newFixture(t, true)
	docs := []index.Document{{Title: "Blockchain audits", PubURL: "u9"}}
	if err := artifact.NewWriter(f.path).Save(index.Build(docs, 99)); err != nil {
		t.Fatal(err)
	}

	before := decode[executor.SearchResult](t, f.do(http.MethodGet, "/api/v1/search?q=blockchain"))
	if before.TotalHits != 0 {
		t.Fatalf("artifact changed before reload: %+v", before)
	}

	rec := f.do(http.MethodPost, "/api/v1/index/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
	stats := decode[map[string]any](t, rec)
	if stats["generation"].(float64) != 2 || stats["documents"].(float64) != 1 {
		t.Errorf("reload stats = %v", stats)
	}

	after := decode[executor.SearchResult](t, f.do(http.MethodGet, "/api/v1/search?q=blockchain"))
	if after.TotalHits != 1 || after.BuiltAt != 99 {
		t.Errorf("after reload = %+v", after)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(http.MethodGet, "/api/v1/cache/stats")
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["status"] != "disabled" {
		t.Errorf("cache stats = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/cache/invalidate"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, true)
	if rec := f.do(http.MethodGet, "/api/v1/index/reload"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
