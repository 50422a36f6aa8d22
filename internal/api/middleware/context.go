package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const clientIDKey contextKey = "client_id"

// WithClientID records the identity rate limits are counted against.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientID returns the identity set by Authenticate, falling back to the
// remote host when authentication is disabled or has not run.
func ClientID(r *http.Request) string {
	if id, ok := r.Context().Value(clientIDKey).(string); ok && id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
