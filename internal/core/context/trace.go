package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext correlates the log lines of one request, and of the queued
// task that request produced.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// NewTraceContext starts a trace. An empty requestID is generated; the
// worker passes the ID recorded when the movement was enqueued.
func NewTraceContext(requestID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return &TraceContext{
		TraceID:   uuid.New().String(),
		SpanID:    newSpanID(),
		RequestID: requestID,
	}
}

func newSpanID() string {
	return uuid.New().String()[:16]
}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// MovementContext names the stock movement being processed.
type MovementContext struct {
	MovementID string
	Kind       string
}

type movementContextKey struct{}

// WithMovement tags ctx with the movement being applied.
func WithMovement(ctx context.Context, movementID, kind string) context.Context {
	return context.WithValue(ctx, movementContextKey{}, &MovementContext{MovementID: movementID, Kind: kind})
}

// GetMovement returns the movement tag, or nil.
func GetMovement(ctx context.Context) *MovementContext {
	if v, ok := ctx.Value(movementContextKey{}).(*MovementContext); ok {
		return v
	}
	return nil
}
