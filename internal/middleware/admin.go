package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/nexustechhub/mdts/internal/domain"
)

// RequireAdminToken guards back-office endpoints (receipt issuance and
// lookup, VAT return figures) with a static bearer token. An empty token
// disables the endpoints instead of leaving them open.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				respondWithError(w, r, domain.Errorf(domain.EUNAVAILABLE, "", "Admin API is not configured"))
				return
			}

			got, ok := bearerToken(r)
			if !ok {
				respondUnauthorized(w, r)
				return
			}

			// Equal-length digests keep the compare constant-time
			sum := sha256.Sum256([]byte(got))
			if subtle.ConstantTimeCompare(sum[:], want[:]) != 1 {
				GetLogger(r.Context()).Warn("admin auth: invalid token", "path", r.URL.Path)
				respondUnauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
