package httpserver

import (
	"net/http"
	"net/url"
	"strings"
)

// WithOriginPolicy enforces the browser origin policy on a handler and sets
// CORS headers for allowed cross-origin requests. Requests without an
// Origin header (curl, server-to-server) pass untouched. With no configured
// allowlist the policy is same-host only.
func (s *Server) WithOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next(w, r)
			return
		}

		if !originAllowed(origin, r.Host, s.cfg.AllowedOrigins) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			if reqHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers")); reqHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func originAllowed(origin, requestHost string, allowed []string) bool {
	if len(allowed) > 0 {
		normalized := strings.TrimSuffix(origin, "/")
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, normalized) {
				return true
			}
		}
		return false
	}

	// Default: same host:port. Scheme is deliberately ignored so the server
	// can sit behind a TLS-terminating proxy.
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, requestHost)
}
