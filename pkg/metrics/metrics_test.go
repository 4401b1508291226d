package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersNamespacedCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SearchQueriesTotal.WithLabelValues("ok").Inc()
	m.PublicationsIngested.WithLabelValues("accepted").Add(3)
	m.ArtifactDocuments.Set(12)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "scholar_") {
			t.Errorf("metric %q lacks namespace", mf.GetName())
		}
		got[mf.GetName()] = mf
	}

	tests := []struct {
		name string
		want float64
	}{
		{"scholar_search_queries_total", 1},
		{"scholar_ingestion_publications_total", 3},
		{"scholar_artifact_documents", 12},
	}
	for _, tt := range tests {
		mf, ok := got[tt.name]
		if !ok {
			t.Errorf("%s not gathered", tt.name)
			continue
		}
		metric := mf.GetMetric()[0]
		var v float64
		switch {
		case metric.GetCounter() != nil:
			v = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			v = metric.GetGauge().GetValue()
		}
		if v != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, v, tt.want)
		}
	}
}

func TestNewTwiceOnOneRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	New(reg)
}

func TestIndexPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", indexPage("searcher"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "scholar-search searcher") {
		t.Errorf("index = %d %q", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rec.Code)
	}
}
