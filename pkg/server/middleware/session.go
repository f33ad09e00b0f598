package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/identity"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/respond"
)

const RequestIDHeader = "X-Request-Id"

// SessionAuthenticator is middleware that validates HS256 session tokens
// and stores the operator identity in the request context.
type SessionAuthenticator struct {
	secret []byte
	issuer string
	logger log.FieldLogger
}

// NewSessionAuthenticator creates a session middleware. An empty issuer
// accepts tokens from any issuer.
func NewSessionAuthenticator(secret []byte, issuer string, logger log.FieldLogger) *SessionAuthenticator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SessionAuthenticator{secret: secret, issuer: issuer, logger: logger}
}

// Parse validates a raw session token and returns its claims.
func (a *SessionAuthenticator) Parse(raw string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errs.Authentication("invalid session token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errs.Authentication("session token has no subject")
	}
	return claims, nil
}

// Middleware returns an HTTP middleware that requires a valid session.
func (a *SessionAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respond.Error(w, r, a.logger, errs.Authentication("authorization missing"))
			return
		}

		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || raw == "" {
			respond.Error(w, r, a.logger, errs.Authentication("malformed authorization header"))
			return
		}

		claims, err := a.Parse(raw)
		if err != nil {
			respond.Error(w, r, a.logger, err)
			return
		}

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		id := identity.FromClaims(claims).
			WithRemoteIP(ClientIP(r)).
			WithRequestID(requestID)
		next.ServeHTTP(w, r.WithContext(identity.Set(r.Context(), id)))
	})
}

// ClientIP returns the first X-Forwarded-For address, falling back to the
// connection's remote address.
func ClientIP(r *http.Request) net.IP {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
