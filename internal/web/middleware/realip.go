package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/TxtConvert/internal/core"
)

// ClientIP returns the id a request is throttled and logged under: the first
// entry of X-Forwarded-For when it is non-blank, else the host part of the
// connection address.
//
// The forwarded header is taken as-is. Any client can send it, so a client
// that rotates the value gets a fresh bucket each time. Deployments that need
// a stronger id must overwrite the header at the edge proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

// ClientID stores the client id and User-Agent in the request context for
// the throttle, the logs and the conversion history.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithClientID(r.Context(), ClientIP(r))
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
