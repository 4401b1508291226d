package consumer

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
)

type countingRebuilder struct{ calls int }

func (c *countingRebuilder) RequestRebuild() { c.calls++ }

func TestHandle(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantCalls int
	}{
		{"accepted", `{"accepted": 3, "duplicates": 1, "request_id": "r1"}`, 1},
		{"only duplicates", `{"accepted": 0, "duplicates": 4}`, 0},
		{"negative", `{"accepted": -2}`, 0},
		{"garbage", `not json`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRebuilder{}
			ic := newIndexConsumer(r)
			if err := ic.handle(context.Background(), []byte("k"), []byte(tt.value)); err != nil {
				t.Fatalf("handle error: %v", err)
			}
			if r.calls != tt.wantCalls {
				t.Errorf("rebuild requests = %d, want %d", r.calls, tt.wantCalls)
			}
		})
	}
}

func TestStatsCountOutcomes(t *testing.T) {
	ic := newIndexConsumer(&countingRebuilder{})
	for _, v := range []string{`{"accepted": 1}`, `{"accepted": 2}`, `{"accepted": 0}`, `{`} {
		_ = ic.handle(context.Background(), nil, []byte(v))
	}
	want := Stats{Received: 4, Triggered: 2, Skipped: 2}
	if got := ic.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestGroupID(t *testing.T) {
	if got := GroupID(config.KafkaConfig{ConsumerGroup: "scholar"}); got != "scholar-indexer" {
		t.Errorf("GroupID = %q", got)
	}
}
