package store

import (
	"context"
	"errors"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// ErrPermissionNotFound is returned when a permission name is not in the catalog
var ErrPermissionNotFound = errors.New("permission not found")

// CatalogStore abstracts the permission catalog
type CatalogStore interface {
	// PermissionByName resolves a permission name.
	// Returns ErrPermissionNotFound if the name is unknown.
	PermissionByName(ctx context.Context, name string) (*model.Permission, error)

	// ListPermissions returns the whole catalog ordered by name.
	ListPermissions(ctx context.Context) ([]model.Permission, error)
}
