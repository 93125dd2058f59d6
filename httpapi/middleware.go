package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	advancedauth "github.com/DevDad-Main/advanced-auth"
)

// throttle puts the global per-address token bucket in front of every
// route. A denied or failed check short-circuits before any handler runs.
func (h *Handler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.engine.AllowRequest(r.Context(), h.clientIP(r)); err != nil {
			if errors.Is(err, advancedauth.ErrRateLimited) {
				h.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
				return
			}
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth wraps a handler so it only runs for requests carrying a valid
// access token, from the cookie or the Authorization header.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}

		claims, err := h.engine.ValidateAccess(token)
		if err != nil {
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		r.Header.Set("X-User-ID", claims.UID)
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the address the throttle keys its bucket on.
// X-Forwarded-For is honored only when TrustProxy declares a proxy in
// front; otherwise the transport peer address is used.
func (h *Handler) clientIP(r *http.Request) string {
	if h.config.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			return strings.TrimSpace(fwd)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func accessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(accessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
