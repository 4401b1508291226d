// Package tracing times the phases of a request as a tree of spans carried
// in the context. A finished tree is written to the request logger at debug
// level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is one timed phase. Children are appended concurrently safely.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// StartSpan begins a root span, usually named after the operation and keyed
// by the request ID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, spanKey, s), s
}

// StartChildSpan begins a span under the one in ctx. Without a parent the
// span is still returned but is not attached to anything.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey, child), child
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey).(*Span)
	return s
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

// SetAttr attaches a key-value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns a copy of the direct child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants, one record per span.
func (s *Span) Log(ctx context.Context, logger *slog.Logger) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, logger, 0)
}

func (s *Span) log(ctx context.Context, logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_us", s.Duration.Microseconds(),
		"depth", depth,
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.DebugContext(ctx, "span", attrs...)
	for _, c := range children {
		c.log(ctx, logger, depth+1)
	}
}
