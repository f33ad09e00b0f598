// Package metrics defines the Prometheus collectors of the membership
// gateway and the HTTP middleware that feeds them.
package metrics
