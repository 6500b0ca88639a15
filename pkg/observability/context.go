package observability

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	correlationIDCtxKey ctxKey = iota
	requestIDCtxKey
	tenantIDCtxKey
)

// Log attribute names for the request-scoped values.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	TenantIDKey      = "tenant_id"
)

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithCorrelationID tags ctx with the id shared by every log line, audit
// record and event that one action produces. An empty id gets a fresh UUID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withString(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, correlationIDCtxKey)
}

// WithRequestID tags ctx with the id of one inbound request. An empty id
// gets a fresh UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withString(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDCtxKey)
}

// WithTenantID tags ctx with the vendor being served.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return withString(ctx, tenantIDCtxKey, tenantID)
}

// TenantIDFromContext returns the vendor ID, or "".
func TenantIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, tenantIDCtxKey)
}

// NewRequestContext starts a request: a fresh request ID plus the caller's
// correlation ID, or a new one when the caller sent none.
func NewRequestContext(ctx context.Context, correlationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), correlationID)
}
