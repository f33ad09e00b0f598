package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Ensure CatalogStore implements store.CatalogStore
var _ store.CatalogStore = (*CatalogStore)(nil)

// CatalogStore implements store.CatalogStore using GORM
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a new CatalogStore
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// PermissionByName resolves a permission name to its catalog row.
func (s *CatalogStore) PermissionByName(ctx context.Context, name string) (*model.Permission, error) {
	var p model.Permission
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrPermissionNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPermissions returns the catalog ordered by name.
func (s *CatalogStore) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := s.db.WithContext(ctx).Order("name").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}
