// Package trace carries trace and span ids through the three ways a request
// reaches blinkguard: HTTP control calls, /ws messages from the renderer and
// the gRPC stream to the vision sidecar. Ids use W3C sizes (128-bit trace,
// 64-bit span) and are logged as trace_id and span_id.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

// Header and metadata keys.
const (
	TraceIDKey = "x-trace-id"
	SpanIDKey  = "x-span-id"
)

// Context identifies one span within a trace.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New starts a trace.
func New() Context {
	return Context{TraceID: randomHex(16), SpanID: randomHex(8)}
}

// Continue opens a span under a remote caller's ids. An empty traceID starts
// a fresh trace; parentSpanID may be empty.
func Continue(traceID, parentSpanID string) Context {
	if traceID == "" {
		return New()
	}
	return Context{TraceID: traceID, SpanID: randomHex(8), ParentSpanID: parentSpanID}
}

// Child opens a span under c. The zero Context has no trace, so its child
// starts one.
func (c Context) Child() Context {
	return Continue(c.TraceID, c.SpanID)
}

type ctxKey struct{}

// FromContext returns the trace carried by ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext returns ctx carrying tc.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// Ensure returns ctx unchanged if it carries a trace, else ctx with a new one.
func Ensure(ctx context.Context) context.Context {
	if _, ok := FromContext(ctx); ok {
		return ctx
	}
	return WithContext(ctx, New())
}

// Logger returns the default logger tagged with ctx's ids, or the default
// logger itself when ctx carries no trace.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	log := slog.Default().With("trace_id", tc.TraceID, "span_id", tc.SpanID)
	if tc.ParentSpanID != "" {
		log = log.With("parent_span_id", tc.ParentSpanID)
	}
	return log
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
