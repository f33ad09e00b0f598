// Package membership implements role assignment flows on spaces and events.
//
// Every mutating flow has the same shape: validate the request, authorize
// the operator with the RBAC evaluator, acquire the resource credential
// through the mutation gate, check for conflicts under that identity and
// write. Duplicates surface as conflicts; concurrent updates are
// last-writer-wins.
package membership
