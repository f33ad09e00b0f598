package store

import (
	"context"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// RolesStore abstracts role catalog reads
type RolesStore interface {
	// ListRolePermissions returns every RolePermission visible on a resource:
	// rows scoped to (resourceType, resourceID) plus global rows, each with
	// its Role joined, ordered by creation time ascending.
	ListRolePermissions(ctx context.Context, resourceType, resourceID string) ([]model.RolePermission, error)
}
