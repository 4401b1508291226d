package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 3, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	for i := 0; i < 3; i++ {
		c.Track(string(EventSearch), SearchEvent{Type: EventSearch, Query: "q"})
	}
	deadline := time.Now().Add(2 * time.Second)
	for pub.total() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.total() != 3 {
		t.Fatalf("published %d events, want 3", pub.total())
	}
	c.Close()
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 100, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track("search", SearchEvent{Type: EventSearch})
	c.Track("search", SearchEvent{Type: EventZeroResult})
	c.Close()
	if pub.total() != 2 {
		t.Errorf("published %d events after close, want 2", pub.total())
	}
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 100, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track("search", SearchEvent{Type: EventSearch})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-c.done
	if pub.total() != 1 {
		t.Errorf("published %d events after cancel, want 1", pub.total())
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&recordingPublisher{}, CollectorConfig{BufferSize: 2})
	for i := 0; i < 5; i++ {
		c.Track("search", SearchEvent{})
	}
	if c.Pending() != 2 {
		t.Errorf("pending = %d, want 2", c.Pending())
	}
}

func TestCollectorSurvivesPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, CollectorConfig{BatchSize: 1, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track("search", SearchEvent{})
	c.Close()
}

func TestSearchEventType(t *testing.T) {
	tests := []struct {
		status string
		hits   int
		want   EventType
	}{
		{"ok", 3, EventSearch},
		{"no_results", 0, EventZeroResult},
		{"awaiting_input", 0, EventAwaitInput},
	}
	for _, tt := range tests {
		if got := SearchEventType(tt.status, tt.hits); got != tt.want {
			t.Errorf("SearchEventType(%q, %d) = %q, want %q", tt.status, tt.hits, got, tt.want)
		}
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandleEventAggregates(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()
	messages := [][]byte{
		encode(t, SearchEvent{Type: EventSearch, Query: "finance", TotalHits: 4, LatencyMs: 10}),
		encode(t, SearchEvent{Type: EventSearch, Query: "finance", TotalHits: 4, LatencyMs: 20, CacheHit: true}),
		encode(t, SearchEvent{Type: EventZeroResult, Query: "blockchain", LatencyMs: 30}),
		encode(t, SearchEvent{Type: EventAwaitInput}),
		encode(t, SearchEvent{Type: EventSearchError, Query: "x"}),
		encode(t, IndexEvent{Type: EventIndexBuilt, Documents: 120, BuiltAt: 1700}),
		encode(t, IndexEvent{Type: EventIndexFailed, Error: "source down"}),
		encode(t, IngestEvent{Type: EventIngestBatch, Accepted: 7, Duplicates: 2}),
		[]byte("not json"),
		encode(t, map[string]string{"type": "unknown"}),
	}
	for _, m := range messages {
		if err := handle(ctx, nil, m); err != nil {
			t.Fatalf("handler returned %v", err)
		}
	}

	stats := agg.Stats()
	if stats.TotalSearches != 3 || stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("search counters = %+v", stats)
	}
	if stats.ZeroResultCount != 1 || stats.AwaitingInput != 1 || stats.SearchErrors != 1 {
		t.Errorf("status counters = %+v", stats)
	}
	if stats.IndexBuilds != 1 || stats.IndexFailures != 1 || stats.LastIndexDocs != 120 || stats.LastBuiltAt != 1700 {
		t.Errorf("index counters = %+v", stats)
	}
	if stats.PublicationsAdded != 7 {
		t.Errorf("publications = %d", stats.PublicationsAdded)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0] != (QueryCount{Query: "finance", Count: 2}) {
		t.Errorf("top queries = %+v", stats.TopQueries)
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "blockchain" {
		t.Errorf("zero result queries = %+v", stats.ZeroResultQueries)
	}
	if stats.P50LatencyMs != 20 || stats.AvgLatencyMs != 20 {
		t.Errorf("latency p50 = %d avg = %v", stats.P50LatencyMs, stats.AvgLatencyMs)
	}
}

func TestRestore(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches: 10,
		IndexBuilds:   2,
		TopQueries:    []QueryCount{{Query: "finance", Count: 5}},
	})
	agg.RecordSearch(SearchEvent{Type: EventSearch, Query: "finance", TotalHits: 1})
	stats := agg.Stats()
	if stats.TotalSearches != 11 || stats.IndexBuilds != 2 {
		t.Errorf("restored stats = %+v", stats)
	}
	if stats.TopQueries[0].Count != 6 {
		t.Errorf("top query count = %d", stats.TopQueries[0].Count)
	}
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Type: EventSearch, Query: "q", TotalHits: 1})
	mux := http.NewServeMux()
	NewHandler(agg).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 {
		t.Errorf("total searches = %d", stats.TotalSearches)
	}
}

func TestHandlerStatsTop(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"finance", "finance", "governance", "microfinance"} {
		agg.RecordSearch(SearchEvent{Type: EventSearch, Query: q, TotalHits: 1})
	}
	mux := http.NewServeMux()
	NewHandler(agg).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if len(stats.TopQueries) != 1 || stats.TopQueries[0].Query != "finance" {
		t.Errorf("top queries = %+v", stats.TopQueries)
	}

	for _, v := range []string{"0", "11", "x"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+v, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("top=%s: status = %d, want 400", v, rec.Code)
		}
	}
}

func TestTeeFeedsLocalAggregator(t *testing.T) {
	agg := NewAggregator()
	remote := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(Tee(remote, agg), CollectorConfig{BatchSize: 2, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track(string(EventSearch), SearchEvent{Type: EventSearch, Query: "finance", TotalHits: 3})
	c.Track(string(EventIngestBatch), IngestEvent{Type: EventIngestBatch, Accepted: 4})
	c.Close()

	stats := agg.Stats()
	if stats.TotalSearches != 1 || stats.PublicationsAdded != 4 {
		t.Errorf("stats = %+v", stats)
	}
}
