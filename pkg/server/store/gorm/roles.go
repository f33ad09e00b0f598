package gorm

import (
	"context"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Ensure RolesStore implements store.RolesStore
var _ store.RolesStore = (*RolesStore)(nil)

// RolesStore implements store.RolesStore using GORM
type RolesStore struct {
	db *gorm.DB
}

// NewRolesStore creates a new RolesStore
func NewRolesStore(db *gorm.DB) *RolesStore {
	return &RolesStore{db: db}
}

const visibleRolePermissionsQuery = `
	SELECT rp.id, rp.role_id, rp.resource_type, rp.resource_id, rp.permissions, rp.created_at,
	       r.name AS role_name, r.level AS role_level, r.created_at AS role_created_at
	FROM role_permissions rp
	JOIN roles r ON r.id = rp.role_id
	WHERE (rp.resource_type = ? AND rp.resource_id = ?)
	   OR (rp.resource_type IS NULL AND rp.resource_id IS NULL)
	ORDER BY rp.created_at ASC, rp.id ASC
`

type rolePermissionRow struct {
	ID            string
	RoleID        string
	ResourceType  *string
	ResourceID    *string
	Permissions   pq.StringArray
	CreatedAt     time.Time
	RoleName      string
	RoleLevel     string
	RoleCreatedAt time.Time
}

// ListRolePermissions returns scoped and global rows for a resource, oldest first.
func (s *RolesStore) ListRolePermissions(ctx context.Context, resourceType, resourceID string) ([]model.RolePermission, error) {
	var rows []rolePermissionRow
	if err := s.db.WithContext(ctx).Raw(visibleRolePermissionsQuery, resourceType, resourceID).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]model.RolePermission, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.RolePermission{
			ID:           row.ID,
			RoleID:       row.RoleID,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			Permissions:  row.Permissions,
			CreatedAt:    row.CreatedAt,
			Role: &model.Role{
				ID:        row.RoleID,
				Name:      row.RoleName,
				Level:     model.RoleLevel(row.RoleLevel),
				CreatedAt: row.RoleCreatedAt,
			},
		})
	}
	return out, nil
}
