package analytics

import "time"

type EventType string

const (
	EventSearch       EventType = "search"
	EventZeroResult   EventType = "zero_result"
	EventAwaitInput   EventType = "awaiting_input"
	EventSearchError  EventType = "search_error"
	EventIndexBuilt   EventType = "index_built"
	EventIndexFailed  EventType = "index_failed"
	EventIngestBatch  EventType = "ingest_batch"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	Sort      string    `json:"sort"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	Source     string    `json:"source"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	BuiltAt    int64     `json:"built_at"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type IngestEvent struct {
	Type       EventType `json:"type"`
	Accepted   int       `json:"accepted"`
	Duplicates int       `json:"duplicates"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// SearchEventType classifies a completed search by its result status.
func SearchEventType(status string, totalHits int) EventType {
	switch {
	case status == "awaiting_input":
		return EventAwaitInput
	case totalHits == 0:
		return EventZeroResult
	default:
		return EventSearch
	}
}
