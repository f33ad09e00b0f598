// Package model defines the data types of the membership gateway.
//
// Two groups of types live here.
//
// # Relational models
//
// GORM models mapped to the relational catalog:
//
//   - Role: named privilege tiers (roles)
//   - Permission: the flat permission catalog (permissions)
//   - RolePermission: permission ids granted to a role, per resource or global (role_permissions)
//   - SigningSeed: sealed signing seed per resource (resource_signing_seeds)
//
// # Graph documents
//
// Documents owned by the decentralized graph store and only written through
// the mutation gate: Resource, UserRole and Invitation.
package model
