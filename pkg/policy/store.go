package policy

import (
	"context"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Store abstracts the storage operations for policy loading.
type Store interface {
	// Transaction runs fn with a transactional Store. If fn returns an
	// error, the transaction is rolled back.
	Transaction(ctx context.Context, fn func(Store) error) error

	// ListPermissions returns the permission catalog.
	ListPermissions(ctx context.Context) ([]model.Permission, error)

	// UpsertRole creates the role or updates its name and level.
	UpsertRole(ctx context.Context, role *model.Role) error

	// UpsertRolePermission creates the row or replaces its permissions.
	UpsertRolePermission(ctx context.Context, rp *model.RolePermission) error
}
