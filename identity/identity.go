// Package identity resolves the key a request is scoped by: the authenticated
// user id when the auth middleware has set one, otherwise the caller's network
// address.
//
// Keying by address is imprecise. Every client behind one NAT or proxy shares a
// single identity, so a token issued to one of them replaces the others' token.
// That trade-off is accepted; do not swap in another heuristic silently.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext returns the authenticated user id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyUserID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Resolver derives request identities. TrustProxy enables X-Forwarded-For and
// X-Real-IP, which must only be honoured behind a proxy that overwrites them.
type Resolver struct {
	TrustProxy bool
}

// FromRequest prefers the authenticated user id over the network address.
func (res Resolver) FromRequest(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + res.ClientIP(r)
}

func (res Resolver) ClientIP(r *http.Request) string {
	if res.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First hop is the original client
			if idx := strings.Index(xff, ","); idx > 0 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
