package server

import (
	"net/http"

	"mixlingo/internal/relay"
)

// corsMiddleware answers preflight requests and echoes allowed origins.
// Requests from other origins are served without CORS headers, leaving the
// browser to block them.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	origins := append([]string(nil), allowed...)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && relay.OriginAllowed(origins, origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
