// Package health serves the liveness and readiness checks. Each service
// registers a Check per dependency: the searcher its loaded index and
// Redis, ingestion PostgreSQL, analytics its snapshot store.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const (
	checkTimeout = 2 * time.Second
	readyTimeout = 5 * time.Second
)

// Check tests one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the readiness response body. Status is the worst component
// status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Ping adapts a ping function into a Check that is down when ping fails.
func Ping(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

type registration struct {
	check    Check
	optional bool
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]registration),
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a check whose failure makes the service unready.
func (c *Checker) Register(name string, check Check) {
	c.register(name, check, false)
}

// RegisterOptional adds a check for a dependency the service can run
// without; a down result only degrades the report.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check Check, optional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registration{check: check, optional: optional}
}

// Run executes every check concurrently, each bounded by checkTimeout.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mu.RUnlock()

	results := make(map[string]ComponentHealth, len(checks))
	var mu sync.Mutex
	var g errgroup.Group
	for name, reg := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			result := reg.check(checkCtx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			if reg.optional && result.Status == StatusDown {
				result.Status = StatusDegraded
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: results,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for name, comp := range results {
		switch comp.Status {
		case StatusDown:
			c.logger.Warn("component down", "name", name, "message", comp.Message)
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// Mount registers /health/live and /health/ready on mux.
func (c *Checker) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", c.LiveHandler())
	mux.HandleFunc("GET /health/ready", c.ReadyHandler())
}

// LiveHandler always answers 200 while the process serves HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers 503 when a required check is down. A degraded
// report is still ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}
