package model

import (
	"strings"
	"time"
)

// UserRole assigns one role to a user on one resource. At most one exists per
// (UserID, ResourceID, ResourceType).
type UserRole struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	ResourceID   string       `json:"resourceId"`
	ResourceType ResourceType `json:"resourceType"`
	RoleID       string       `json:"roleId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NormalizeID canonicalizes a user identifier for comparison. DIDs are opaque
// and compared as-is; bare hex account addresses are case-insensitive.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		return strings.ToLower(id)
	}
	return id
}

// SameID compares two user identifiers after normalization.
func SameID(a, b string) bool {
	return NormalizeID(a) == NormalizeID(b)
}
