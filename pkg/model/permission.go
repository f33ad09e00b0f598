package model

import (
	"time"

	"github.com/lib/pq"
)

// Well-known permission names.
const (
	PermissionManageAdminRole  = "MANAGE_ADMIN_ROLE"
	PermissionManageMemberRole = "MANAGE_MEMBER_ROLE"
	PermissionInviteUsers      = "INVITE_USERS"
)

// Permission is an entry in the flat permission catalog.
type Permission struct {
	ID   string `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name;uniqueIndex;not null" json:"name"`
}

func (Permission) TableName() string {
	return "permissions"
}

// RolePermission grants a role a set of permission ids, either on a single
// resource or, when ResourceType and ResourceID are nil, globally.
type RolePermission struct {
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	RoleID       string         `gorm:"column:role_id;not null" json:"roleId"`
	ResourceType *string        `gorm:"column:resource_type" json:"resourceType"`
	ResourceID   *string        `gorm:"column:resource_id" json:"resourceId"`
	Permissions  pq.StringArray `gorm:"column:permissions;type:text[]" json:"permissions"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

func (rp RolePermission) IsGlobal() bool {
	return rp.ResourceType == nil && rp.ResourceID == nil
}

// Level returns the level of the joined role, or "" when it was not loaded.
func (rp RolePermission) Level() RoleLevel {
	if rp.Role == nil {
		return ""
	}
	return rp.Role.Level
}
