package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey contextKey = "request_id"

	// JobIDKey is the context key for retention job IDs.
	JobIDKey contextKey = "job_id"

	// JobKindKey is the context key for retention job kinds.
	JobKindKey contextKey = "job_kind"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithJob adds a job ID and kind to the context.
func WithJob(ctx context.Context, jobID, kind string) context.Context {
	ctx = context.WithValue(ctx, JobIDKey, jobID)
	return context.WithValue(ctx, JobKindKey, kind)
}

// GetJobID retrieves the job ID from the context.
func GetJobID(ctx context.Context) string {
	if id, ok := ctx.Value(JobIDKey).(string); ok {
		return id
	}
	return ""
}

// GetJobKind retrieves the job kind from the context.
func GetJobKind(ctx context.Context) string {
	if kind, ok := ctx.Value(JobKindKey).(string); ok {
		return kind
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, slog.String(string(RequestIDKey), requestID))
	}
	if jobID := GetJobID(ctx); jobID != "" {
		fields = append(fields, slog.String(string(JobIDKey), jobID))
	}
	if kind := GetJobKind(ctx); kind != "" {
		fields = append(fields, slog.String(string(JobKindKey), kind))
	}
	return fields
}

// contextHandler adds request and job fields carried by the context to
// every record logged with a *Context method.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if fields := extractContextFields(ctx); len(fields) > 0 {
			r = r.Clone()
			r.AddAttrs(fields...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
