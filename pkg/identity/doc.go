// Package identity carries the authenticated operator of a request.
//
// The session middleware validates the bearer token and stores an Identity in
// the request context; handlers read it back with Get. Operator ids are
// normalized with model.NormalizeID before they are stored.
//
//	ctx = identity.Set(ctx, identity.FromClaims(claims).WithRemoteIP(ip))
//	id, ok := identity.Get(ctx)
package identity
