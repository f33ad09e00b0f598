// Package invitation implements the invitation lifecycle.
//
// An invitation starts pending and moves to accepted, rejected or cancelled
// through a closed transition table. Every transition is guarded, in order,
// by existence, expiry, current status and actor. Writes are made through
// the mutation gate under the identity of the invitation's resource.
//
// Accepting an invitation also grants a role, so the accept flow is driven
// by the membership service using Prepare and Complete.
package invitation
