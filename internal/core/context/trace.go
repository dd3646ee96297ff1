package context

import (
	"context"

	"github.com/google/uuid"
)

// Origins of a unit of work.
const (
	OriginHTTP = "http"
	OriginJob  = "job"
)

// TraceContext identifies one API request or one background task in logs.
type TraceContext struct {
	TraceID   string
	RequestID string
	Origin    string
}

type traceContextKey struct{}

func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the TraceContext of ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns the request (or task) id, or "".
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext starts a trace. requestID is the caller-supplied
// X-Request-ID or the asynq task id; an empty one gets a fresh UUID.
func NewTraceContext(origin, requestID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &TraceContext{
		TraceID:   uuid.NewString(),
		RequestID: requestID,
		Origin:    origin,
	}
}
