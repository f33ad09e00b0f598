// Package policy loads the role catalog from a YAML document.
//
// A policy declares roles with the permissions they hold everywhere, and
// grants that add permissions to a role on a single space or event:
//
//	roles:
//	  - id: admin
//	    name: Admin
//	    level: admin
//	    permissions: [MANAGE_MEMBER_ROLE, INVITE_USERS]
//	grants:
//	  - role: admin
//	    resource: {type: space, id: space-1}
//	    permissions: [MANAGE_ADMIN_ROLE]
//
// Loading is additive. Declared roles and grants are created or replaced;
// anything the document does not mention is left alone. Row ids are derived
// from the declaration so loading the same document twice is a no-op.
package policy
