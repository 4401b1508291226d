package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Source != SourceFile {
		t.Errorf("source = %q, want %q", cfg.Indexer.Source, SourceFile)
	}
	if cfg.Search.DefaultLimit != 25 || cfg.Search.MaxResults != 100 {
		t.Errorf("search limits = %+v", cfg.Search)
	}
	if cfg.Indexer.RebuildInterval != 0 {
		t.Errorf("rebuild interval = %v, want disabled", cfg.Indexer.RebuildInterval)
	}
	if cfg.Kafka.Topics.PublicationsIngested != "publications.ingested" {
		t.Errorf("ingest topic = %q", cfg.Kafka.Topics.PublicationsIngested)
	}
	if cfg.Analytics.BatchSize != 100 || cfg.Analytics.SnapshotInterval != time.Minute || cfg.Analytics.SnapshotRetention != 1440 {
		t.Errorf("analytics = %+v", cfg.Analytics)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
indexer:
  artifactPath: /var/lib/scholar/index.json
  source: postgres
  rebuildInterval: 168h
search:
  defaultLimit: 10
  maxResults: 50
redis:
  cacheTTL: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Indexer.Source != SourcePostgres {
		t.Errorf("source = %q", cfg.Indexer.Source)
	}
	if cfg.Indexer.RebuildInterval != 168*time.Hour {
		t.Errorf("rebuild interval = %v", cfg.Indexer.RebuildInterval)
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("cache ttl = %v", cfg.Redis.CacheTTL)
	}
	// untouched sections keep their defaults
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d", cfg.Postgres.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SP_SERVER_PORT", "7070")
	t.Setenv("SP_INDEXER_ARTIFACT_PATH", "/tmp/idx.json")
	t.Setenv("SP_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("SP_INDEXER_REBUILD_INTERVAL", "1h")
	t.Setenv("SP_INDEXER_REBUILD_SETTLE", "500ms")
	t.Setenv("SP_ANALYTICS_SNAPSHOT_INTERVAL", "0s")
	t.Setenv("SP_AUTH_ENABLED", "true")
	t.Setenv("SP_SERVER_CORS_ORIGINS", "https://scholar.example.edu")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Indexer.ArtifactPath != "/tmp/idx.json" {
		t.Errorf("artifact path = %q", cfg.Indexer.ArtifactPath)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Indexer.RebuildInterval != time.Hour {
		t.Errorf("rebuild interval = %v", cfg.Indexer.RebuildInterval)
	}
	if cfg.Indexer.RebuildSettle != 500*time.Millisecond {
		t.Errorf("rebuild settle = %v", cfg.Indexer.RebuildSettle)
	}
	if cfg.Analytics.SnapshotInterval != 0 {
		t.Errorf("snapshot interval = %v, want disabled", cfg.Analytics.SnapshotInterval)
	}
	if !cfg.Auth.Enabled {
		t.Error("auth not enabled by SP_AUTH_ENABLED")
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://scholar.example.edu" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestEmptyBrokerListDisablesKafka(t *testing.T) {
	t.Setenv("SP_KAFKA_BROKERS", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kafka.Enabled() {
		t.Errorf("kafka enabled with brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown source", "indexer:\n  source: s3\n"},
		{"file source without input", "indexer:\n  source: file\n  inputPath: \"\"\n"},
		{"max below default", "search:\n  defaultLimit: 50\n  maxResults: 10\n"},
		{"zero default limit", "search:\n  defaultLimit: 0\n"},
		{"auth without window", "auth:\n  enabled: true\n  rateLimitWindow: 0s\n"},
		{"negative settle", "indexer:\n  rebuildSettle: -1s\n"},
		{"buffer below batch", "analytics:\n  bufferSize: 10\n  batchSize: 50\n"},
		{"negative retention", "analytics:\n  snapshotRetention: -1\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
