package indexer

// IndexCompleteEvent is published after a new artifact has been written.
// Searchers reload when they receive it.
type IndexCompleteEvent struct {
	ArtifactPath string `json:"artifact_path"`
	BuiltAt      int64  `json:"built_at"`
	Documents    int    `json:"docs"`
	Terms        int    `json:"terms"`
	Source       string `json:"source"`
}

// PublicationsIngestedEvent is published by the ingestion service after new
// publications were stored. The indexer rebuilds in response.
type PublicationsIngestedEvent struct {
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	RequestID  string `json:"request_id"`
}
