package identity

import (
	"context"
	"net"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// Key is the context key for Identity.
	Key ContextKey = "identity"
)

// Identity is the authenticated operator of a request.
type Identity struct {
	// Session claims
	OperatorID string
	Issuer     string
	IssuedAt   time.Time
	ExpiresAt  time.Time

	// Request context
	RemoteIP  net.IP
	RequestID string
}

// FromClaims builds an Identity from validated session claims.
func FromClaims(claims *jwt.RegisteredClaims) *Identity {
	id := &Identity{
		OperatorID: model.NormalizeID(claims.Subject),
		Issuer:     claims.Issuer,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id
}

// WithRemoteIP sets the remote IP address.
func (i *Identity) WithRemoteIP(ip net.IP) *Identity {
	i.RemoteIP = ip
	return i
}

// WithRequestID sets the request correlation id.
func (i *Identity) WithRequestID(requestID string) *Identity {
	i.RequestID = requestID
	return i
}

// ClientIP returns the remote IP as a string, or "" when unknown.
func (i *Identity) ClientIP() string {
	if i.RemoteIP == nil {
		return ""
	}
	return i.RemoteIP.String()
}

// Get retrieves Identity from context.
func Get(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(Key).(*Identity)
	return id, ok
}

// Set stores Identity in context.
func Set(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, Key, id)
}

// ClientIPFrom returns the client IP of the request identity in ctx, if any.
func ClientIPFrom(ctx context.Context) string {
	if id, ok := Get(ctx); ok {
		return id.ClientIP()
	}
	return ""
}
