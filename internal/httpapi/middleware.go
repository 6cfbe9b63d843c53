package httpapi

import (
	"net/http"

	"sandboxd/internal/auth"
)

// requireAuth resolves the caller's identity via the auth gate and injects
// it into the request context. It fails closed: an unresolved identity
// returns 401 before the wrapped handler ever runs. OPTIONS preflights
// pass through unauthenticated.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.gate.Resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}
