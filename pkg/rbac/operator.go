package rbac

import "github.com/doodlesbykumbi/membership-gateway/pkg/model"

// Operator is the acting user's resolved context on one resource. It is built
// once per request by Evaluator.ResolveOperator and reused for every check.
type Operator struct {
	ID           string
	ResourceType model.ResourceType
	Resource     *model.Resource

	// UserRole and Role are nil when the operator holds no role on the resource.
	UserRole *model.UserRole
	Role     *model.Role
	IsOwner  bool

	permissions map[string]struct{}
	visible     []model.RolePermission
}

// Level is the operator's role level, or "" without a role.
func (o *Operator) Level() model.RoleLevel {
	if o.Role == nil {
		return ""
	}
	return o.Role.Level
}

// ResourceID is the id of the resource the operator was resolved against.
func (o *Operator) ResourceID() string {
	if o.Resource == nil {
		return ""
	}
	return o.Resource.ID
}

func (o *Operator) holds(permissionID string) bool {
	_, ok := o.permissions[permissionID]
	return ok
}

func (o *Operator) scopedTo(resourceType model.ResourceType, resourceID string) bool {
	return o.Resource != nil && o.ResourceType == resourceType && o.Resource.ID == resourceID
}
