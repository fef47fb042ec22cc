package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/avoss/meetscribe/internal/api/response"
	"github.com/avoss/meetscribe/internal/config"
)

// Auth validates the X-API-Key shared secret before any handler logic runs.
type Auth struct {
	key  string
	hash string
}

// NewAuth creates the auth middleware. When a bcrypt hash is configured it
// takes precedence over the plaintext key.
func NewAuth(cfg config.AuthConfig) *Auth {
	return &Auth{key: cfg.APIKey, hash: cfg.APIKeyHash}
}

// Require rejects requests whose X-API-Key header is missing or does not
// match the configured secret.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-API-Key")
		if presented == "" || !a.match(presented) {
			response.Error(w, http.StatusUnauthorized, "Unauthorized - Invalid API Key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) match(presented string) bool {
	if a.hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.hash), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.key), []byte(presented)) == 1
}
