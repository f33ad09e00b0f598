package policy

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)

// GormStore implements Store using GORM for database operations.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Transaction wraps operations in a database transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// UpsertRole keeps the original created_at of an existing role.
func (s *GormStore) UpsertRole(ctx context.Context, role *model.Role) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "level"}),
	}).Create(role).Error
}

func (s *GormStore) UpsertRolePermission(ctx context.Context, rp *model.RolePermission) error {
	row := *rp
	row.Role = nil
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permissions"}),
	}).Create(&row).Error
}
