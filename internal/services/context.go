package services

import "context"

type contextKey string

const (
	connectionIDKey contextKey = "connection_id"
	eventKey        contextKey = "event"
	sequenceKey     contextKey = "seq"
	requestIDKey    contextKey = "request_id"
)

// WithConnectionID annotates context with the relay connection identifier.
func WithConnectionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionIDFromContext extracts the relay connection identifier if present.
func ConnectionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(connectionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEvent annotates context with the inbound event name.
func WithEvent(ctx context.Context, event string) context.Context {
	if event == "" {
		return ctx
	}
	return context.WithValue(ctx, eventKey, event)
}

// EventFromContext returns the inbound event name if present.
func EventFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(eventKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSequence annotates context with the client-assigned request sequence.
func WithSequence(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, sequenceKey, seq)
}

// SequenceFromContext extracts the client-assigned request sequence if present.
func SequenceFromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(sequenceKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int:
		return uint64(val), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
