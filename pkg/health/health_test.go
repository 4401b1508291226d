package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func up(context.Context) ComponentHealth   { return ComponentHealth{Status: StatusUp} }
func down(context.Context) ComponentHealth { return ComponentHealth{Status: StatusDown, Message: "unreachable"} }

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Checker)
		want  Status
	}{
		{"all up", func(c *Checker) { c.Register("artifact", up) }, StatusUp},
		{"optional down degrades", func(c *Checker) {
			c.Register("artifact", up)
			c.RegisterOptional("redis", down)
		}, StatusDegraded},
		{"required down", func(c *Checker) {
			c.Register("artifact", down)
			c.RegisterOptional("redis", down)
		}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			tt.setup(c)
			if got := c.Run(context.Background()).Status; got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("artifact", down)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Components["artifact"].Message != "unreachable" {
		t.Errorf("components = %+v", report.Components)
	}
}

func TestPingCheck(t *testing.T) {
	ok := Ping(func(context.Context) error { return nil })(context.Background())
	if ok.Status != StatusUp {
		t.Errorf("ok ping = %+v", ok)
	}
	failed := Ping(func(context.Context) error { return errors.New("connection refused") })(context.Background())
	if failed.Status != StatusDown || failed.Message != "connection refused" {
		t.Errorf("failed ping = %+v", failed)
	}
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker()
	c.RegisterOptional("redis", Ping(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	start := time.Now()
	report := c.Run(context.Background())
	if elapsed := time.Since(start); elapsed > checkTimeout+time.Second {
		t.Errorf("Run took %v", elapsed)
	}
	if report.Components["redis"].Status != StatusDegraded {
		t.Errorf("redis = %+v", report.Components["redis"])
	}
}

func TestMount(t *testing.T) {
	c := NewChecker()
	c.Register("index", up)
	mux := http.NewServeMux()
	c.Mount(mux)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d", path, rec.Code)
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Errorf("%s missing Cache-Control", path)
		}
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/ready", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST ready = %d", rec.Code)
	}
}
