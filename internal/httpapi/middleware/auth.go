package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"uptimebot/internal/domain"
)

// Authorizer is the slice of the admin registry the API needs.
type Authorizer interface {
	IsAuthorized(p domain.PrincipalID) bool
	IsPrimary(p domain.PrincipalID) bool
}

// CallerID extracts the caller's principal id from the request.
func CallerID(r *http.Request) domain.PrincipalID {
	return domain.PrincipalID(strings.TrimSpace(r.Header.Get("X-Principal-ID")))
}

// RequirePrincipal only permits an authorized caller acting on its own
// partition: the X-Principal-ID header must match the {principal} path
// segment and be a registered admin.
func RequirePrincipal(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerID(r)
			if caller == "" {
				unauthorized(w)
				return
			}
			owner := domain.PrincipalID(chi.URLParam(r, "principal"))
			if caller != owner || !auth.IsAuthorized(caller) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrimary only permits the primary admin (admin-list management).
func RequirePrimary(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerID(r)
			if caller == "" {
				unauthorized(w)
				return
			}
			if !auth.IsPrimary(caller) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden"}`))
}
