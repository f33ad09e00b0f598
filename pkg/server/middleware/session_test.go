package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/membership-gateway/pkg/identity"
	"github.com/doodlesbykumbi/membership-gateway/pkg/logging"
)

var secret = []byte("test-session-secret")

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func validClaims(sub string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "auth.example",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func serve(t *testing.T, auth *SessionAuthenticator, header string) (*httptest.ResponseRecorder, *identity.Identity) {
	t.Helper()
	var got *identity.Identity
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = identity.Get(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/invitation/pending", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, got
}

func TestMiddleware_ValidToken(t *testing.T) {
	auth := NewSessionAuthenticator(secret, "auth.example", logging.Discard())

	w, id := serve(t, auth, "Bearer "+sign(t, jwt.SigningMethodHS256, secret, validClaims("0xABCDEF")))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, id)
	assert.Equal(t, "0xabcdef", id.OperatorID)
	assert.Equal(t, "auth.example", id.Issuer)
	assert.Equal(t, "10.0.0.7", id.ClientIP())
	assert.NotEmpty(t, id.RequestID)
	assert.Equal(t, id.RequestID, w.Header().Get(RequestIDHeader))
}

func TestMiddleware_Rejections(t *testing.T) {
	auth := NewSessionAuthenticator(secret, "auth.example", logging.Discard())

	expired := validClaims("0xabc")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := validClaims("0xabc")
	noExpiry.ExpiresAt = nil
	wrongIssuer := validClaims("0xabc")
	wrongIssuer.Issuer = "elsewhere"

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Token token=\"abc\""},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("0xabc"))},
		{"wrong algorithm", "Bearer " + sign(t, jwt.SigningMethodHS512, secret, validClaims("0xabc"))},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, expired)},
		{"no expiry", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, noExpiry)},
		{"wrong issuer", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, wrongIssuer)},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, validClaims(" "))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, id := serve(t, auth, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Nil(t, id)
			assert.Contains(t, w.Body.String(), `"error":"AuthenticationError"`)
		})
	}
}

func TestMiddleware_AnyIssuerWhenUnset(t *testing.T) {
	auth := NewSessionAuthenticator(secret, "", logging.Discard())
	claims := validClaims("did:key:z6MkUser")
	claims.Issuer = "anyone"

	w, id := serve(t, auth, "Bearer "+sign(t, jwt.SigningMethodHS256, secret, claims))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "did:key:z6MkUser", id.OperatorID)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req).String())

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req).String())

	req.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "192.0.2.1", ClientIP(req).String())
}
