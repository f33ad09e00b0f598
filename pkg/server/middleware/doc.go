// Package middleware holds HTTP middleware for the membership gateway.
//
// SessionAuthenticator validates HS256 session tokens issued elsewhere and
// stores an identity.Identity in the request context, carrying the operator
// id, client IP and request id used by handlers and the audit log.
package middleware
