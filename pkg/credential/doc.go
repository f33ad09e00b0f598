// Package credential derives resource-scoped signing identities.
//
// Each resource owns a 32-byte ed25519 seed kept sealed in the relational
// secret store. The Broker unseals it, checks its fingerprint and builds a
// Signer whose identity is published as a did:key. A Signer attaches a short
// lived EdDSA JWS to every graph mutation, binding the request body to the
// resource identity.
package credential
