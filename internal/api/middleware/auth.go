package middleware

import (
	"log"
	"net/http"

	"familytrack/internal/api/util"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware verifies access tokens issued by the auth service. The subject claim
// becomes the caller's user id.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware returns a middleware that trusts every request when secret is empty.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (m *AuthMiddleware) Enabled() bool {
	return len(m.secret) > 0
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw := util.BearerToken(r)
		if raw == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
			return m.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			log.Printf("[auth] rejected token: %v", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userID, err := token.Claims.GetSubject()
		if err != nil || userID == "" {
			http.Error(w, "Token has no subject", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(util.WithUserID(r.Context(), userID)))
	})
}
