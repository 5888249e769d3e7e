package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// AuthMiddleware requires "Authorization: Bearer <token>" matching token.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, domain.NewAPIError(domain.ErrorTypeAuthentication, "missing Authorization header"))
				return
			}

			got, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeError(w, domain.NewAPIError(domain.ErrorTypeAuthentication, "invalid token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
