// Package graph is the HTTP client of the document graph store.
//
// Requests are POSTed as {query, variables, operationName} and answered with
// {data, errors}. Reads go through a plain Client. Writes take a Mutator: a
// Client copy bound to a resource signer, or a Binding on a SharedClient.
// Mutations carry the signer's JWS in the Authorization header.
//
// A non-empty error list becomes a typed error. Lists made only of
// CONFLICT or only of NOT_FOUND codes map to those kinds; any other list is
// aggregated into a single UpstreamError.
package graph
