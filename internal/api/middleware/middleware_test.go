package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"familytrack/internal/api/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(util.UserIDFromContext(r.Context())))
	})
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware("secret")
	h := m.Authenticate(echoUser())
	valid := jwt.MapClaims{"sub": "mom", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"valid header", "Bearer " + sign(t, "secret", valid), "", http.StatusOK, "mom"},
		{"valid query token", "", "?token=" + sign(t, "secret", valid), http.StatusOK, "mom"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + sign(t, "other", valid), "", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, "secret", jwt.MapClaims{"sub": "mom", "exp": time.Now().Add(-time.Minute).Unix()}), "", http.StatusUnauthorized, ""},
		{"no expiry", "Bearer " + sign(t, "secret", jwt.MapClaims{"sub": "mom"}), "", http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + sign(t, "secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuthenticateDisabled(t *testing.T) {
	m := NewAuthMiddleware("")
	assert.False(t, m.Enabled())

	rec := httptest.NewRecorder()
	m.Authenticate(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/geofences", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}

func TestLoggingRecordsStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
