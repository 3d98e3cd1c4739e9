package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

// requireAuth wraps mutating handlers with HTTP basic auth. When auth is
// disabled in the configuration the handler is served as-is.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	if !s.cfg.AuthEnabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !s.credentialsValid(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="labserver"`)
			s.writeStatusError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next(w, r)
	})
}

func (s *Server) credentialsValid(user, pass string) bool {
	want, ok := s.cfg.Users[user]
	if !ok {
		// Burn a comparison anyway so unknown users cost the same.
		subtle.ConstantTimeCompare([]byte(pass), []byte(pass))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1
}

var errUnauthorized = errors.New("authentication required")
