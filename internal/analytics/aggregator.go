package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AwaitingInput     int64        `json:"awaiting_input_count"`
	SearchErrors      int64        `json:"search_errors"`
	IndexBuilds       int64        `json:"index_builds"`
	IndexFailures     int64        `json:"index_failures"`
	LastBuiltAt       int64        `json:"last_built_at"`
	LastIndexDocs     int          `json:"last_index_documents"`
	PublicationsAdded int64        `json:"publications_added"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	awaitingInput     atomic.Int64
	searchErrors      atomic.Int64
	indexBuilds       atomic.Int64
	indexFailures     atomic.Int64
	publications      atomic.Int64
	lastBuiltAt       int64
	lastIndexDocs     int
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and skipped so one bad event does not stall the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var envelope struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch envelope.Type {
		case EventSearch, EventZeroResult, EventAwaitInput, EventSearchError:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		case EventIndexBuilt, EventIndexFailed:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.RecordIndex(event)
		case EventIngestBatch:
			event, err := kafka.DecodeJSON[IngestEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode ingest event", "error", err)
				return nil
			}
			agg.RecordIngest(event)
		default:
			agg.logger.Debug("ignoring analytics event", "type", envelope.Type)
		}
		return nil
	}
}

// PublishBatch records events in process, letting the aggregator stand in
// for the analytics topic when Kafka is disabled.
func (a *Aggregator) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, e := range events {
		switch v := e.Value.(type) {
		case SearchEvent:
			a.RecordSearch(v)
		case IndexEvent:
			a.RecordIndex(v)
		case IngestEvent:
			a.RecordIngest(v)
		default:
			a.logger.Debug("ignoring analytics event", "key", e.Key)
		}
	}
	return nil
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	switch event.Type {
	case EventAwaitInput:
		a.awaitingInput.Add(1)
		return
	case EventSearchError:
		a.searchErrors.Add(1)
		return
	}
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	if event.Type == EventIndexFailed {
		a.indexFailures.Add(1)
		return
	}
	a.indexBuilds.Add(1)
	a.mu.Lock()
	if event.BuiltAt >= a.lastBuiltAt {
		a.lastBuiltAt = event.BuiltAt
		a.lastIndexDocs = event.Documents
	}
	a.mu.Unlock()
}

func (a *Aggregator) RecordIngest(event IngestEvent) {
	a.publications.Add(int64(event.Accepted))
}

// Restore seeds the counters from a persisted snapshot. Latency samples are
// not persisted and start empty.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.totalSearches.Store(stats.TotalSearches)
	a.cacheHits.Store(stats.CacheHits)
	a.cacheMisses.Store(stats.CacheMisses)
	a.zeroResults.Store(stats.ZeroResultCount)
	a.awaitingInput.Store(stats.AwaitingInput)
	a.searchErrors.Store(stats.SearchErrors)
	a.indexBuilds.Store(stats.IndexBuilds)
	a.indexFailures.Store(stats.IndexFailures)
	a.publications.Store(stats.PublicationsAdded)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastBuiltAt = stats.LastBuiltAt
	a.lastIndexDocs = stats.LastIndexDocs
	for _, q := range stats.TopQueries {
		a.queryCounts[q.Query] = q.Count
	}
	for _, q := range stats.ZeroResultQueries {
		a.zeroResultQueries[q.Query] = q.Count
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
		ZeroResultCount:   a.zeroResults.Load(),
		AwaitingInput:     a.awaitingInput.Load(),
		SearchErrors:      a.searchErrors.Load(),
		IndexBuilds:       a.indexBuilds.Load(),
		IndexFailures:     a.indexFailures.Load(),
		LastBuiltAt:       a.lastBuiltAt,
		LastIndexDocs:     a.lastIndexDocs,
		PublicationsAdded: a.publications.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, maxTop)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, maxTop)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
