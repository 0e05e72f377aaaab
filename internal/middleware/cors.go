package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// CORS lets the browser widget call the API from another origin. "*" in
// allowed matches any origin.
func CORS(allowed []string) func(http.Handler) http.Handler {
	allowed = lo.FilterMap(allowed, func(origin string, _ int) (string, bool) {
		origin = strings.TrimSpace(origin)
		return origin, origin != ""
	})
	wildcard := lo.Contains(allowed, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || lo.Contains(allowed, origin)) {
				h := w.Header()
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
