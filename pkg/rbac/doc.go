// Package rbac resolves an operator's role and permissions on a resource and
// decides which roles the operator may assign.
//
// Role levels form a lattice owner > admin > member > follower. Owners bypass
// every permission check but may never assign the owner role; admins may
// assign member and follower roles. Permission names are resolved to catalog
// ids through an expiring LRU and compared against a set computed once per
// operator.
package rbac
