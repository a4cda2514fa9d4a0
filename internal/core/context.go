package core

import "context"

type contextKey string

const (
	ctxKeyClientID  contextKey = "client_id"
	ctxKeyUserAgent contextKey = "user_agent"
)

// ContextWithClientID stores the throttle client identifier for history and logs.
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyClientID, id)
}

// ContextWithUserAgent adds User-Agent to context for conversion history.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ClientIDFromContext extracts the client identifier from context.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientID).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext extracts User-Agent from context.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
