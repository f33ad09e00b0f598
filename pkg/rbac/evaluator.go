package rbac

import (
	"context"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Directory reads resources and user roles from the document graph.
type Directory interface {
	// Resource returns nil without error when the resource does not exist.
	Resource(ctx context.Context, resourceType model.ResourceType, resourceID string) (*model.Resource, error)
	// UserRole returns nil without error when the user holds no role.
	UserRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (*model.UserRole, error)
}

// Evaluator answers role and permission questions for a resource. It owns no
// mutable state.
type Evaluator struct {
	roles   store.RolesStore
	catalog *Catalog
	dir     Directory
}

func NewEvaluator(roles store.RolesStore, catalog *Catalog, dir Directory) *Evaluator {
	return &Evaluator{roles: roles, catalog: catalog, dir: dir}
}

// RequiredPermission maps a target role level to the permission needed to
// assign or remove it.
func RequiredPermission(level model.RoleLevel) string {
	if level == model.LevelAdmin {
		return model.PermissionManageAdminRole
	}
	return model.PermissionManageMemberRole
}

// VisibleRoles returns the scoped and global RolePermission rows of a
// resource, oldest first.
func (e *Evaluator) VisibleRoles(ctx context.Context, resourceType model.ResourceType, resourceID string) ([]model.RolePermission, error) {
	rows, err := e.roles.ListRolePermissions(ctx, string(resourceType), resourceID)
	if err != nil {
		return nil, errs.Upstream(err, "failed to load role permissions")
	}
	return rows, nil
}

// ResolveOperator loads the resource, the operator's role on it and the
// operator's permission id set.
func (e *Evaluator) ResolveOperator(ctx context.Context, resourceType model.ResourceType, resourceID, operatorID string) (*Operator, error) {
	resource, err := e.dir.Resource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, errs.NotFound("%s %q not found", resourceType, resourceID)
	}

	userRole, err := e.dir.UserRole(ctx, operatorID, resourceType, resourceID)
	if err != nil {
		return nil, err
	}

	visible, err := e.VisibleRoles(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}

	op := &Operator{
		ID:           model.NormalizeID(operatorID),
		ResourceType: resourceType,
		Resource:     resource,
		UserRole:     userRole,
		permissions:  map[string]struct{}{},
		visible:      visible,
	}

	if userRole != nil {
		for _, rp := range visible {
			if rp.RoleID != userRole.RoleID {
				continue
			}
			if op.Role == nil {
				op.Role = rp.Role
			}
			for _, id := range rp.Permissions {
				op.permissions[id] = struct{}{}
			}
		}
	}

	op.IsOwner = model.SameID(resource.OwnerID, operatorID) || op.Level() == model.LevelOwner
	return op, nil
}

// HasPermission reports whether op holds the named permission. Owners hold
// every permission; unknown names are never held.
func (e *Evaluator) HasPermission(ctx context.Context, op *Operator, permissionName string) (bool, error) {
	if op.IsOwner {
		return true, nil
	}
	id, ok, err := e.catalog.PermissionID(ctx, permissionName)
	if err != nil {
		return false, errs.Upstream(err, "failed to resolve permission %s", permissionName)
	}
	if !ok {
		return false, nil
	}
	return op.holds(id), nil
}

// Require fails with an authorization error when op lacks the permission.
func (e *Evaluator) Require(ctx context.Context, op *Operator, permissionName string) error {
	ok, err := e.HasPermission(ctx, op, permissionName)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Authorization("missing permission %s", permissionName)
	}
	return nil
}

// RequireTier checks the permission tier for assigning or removing a role of
// the given level.
func (e *Evaluator) RequireTier(ctx context.Context, op *Operator, level model.RoleLevel) error {
	return e.Require(ctx, op, RequiredPermission(level))
}

// ResolveAssignableRoles returns the rows op may hand out on the resource:
// every role strictly below the operator's ceiling (owner for owners, admin
// for admins). Everyone else may assign nothing.
func (e *Evaluator) ResolveAssignableRoles(ctx context.Context, resourceType model.ResourceType, resourceID string, op *Operator) ([]model.RolePermission, error) {
	var ceiling model.RoleLevel
	switch {
	case op.IsOwner:
		ceiling = model.LevelOwner
	case op.Level() == model.LevelAdmin:
		ceiling = model.LevelAdmin
	default:
		return []model.RolePermission{}, nil
	}

	rows := op.visible
	if !op.scopedTo(resourceType, resourceID) {
		var err error
		if rows, err = e.VisibleRoles(ctx, resourceType, resourceID); err != nil {
			return nil, err
		}
	}

	out := make([]model.RolePermission, 0, len(rows))
	for _, rp := range rows {
		if !ceiling.Outranks(rp.Level()) {
			continue
		}
		out = append(out, rp)
	}
	return out, nil
}

// IsAssignable reports whether roleID is in op's assignable set.
func (e *Evaluator) IsAssignable(ctx context.Context, op *Operator, roleID string) (bool, error) {
	rows, err := e.ResolveAssignableRoles(ctx, op.ResourceType, op.ResourceID(), op)
	if err != nil {
		return false, err
	}
	for _, rp := range rows {
		if rp.RoleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

// ResolveTargetRole finds the earliest row for roleID visible on the
// resource. A role with no such row does not exist for the resource.
func (e *Evaluator) ResolveTargetRole(ctx context.Context, resourceType model.ResourceType, resourceID, roleID string) (*model.RolePermission, error) {
	rows, err := e.VisibleRoles(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	if rp := firstRow(rows, func(rp model.RolePermission) bool { return rp.RoleID == roleID }); rp != nil {
		return rp, nil
	}
	return nil, errs.NotFound("role %q not found for %s %q", roleID, resourceType, resourceID)
}

// FirstRoleAtLevel returns the earliest visible row whose role has level.
// When globalOnly is set, scoped rows are skipped.
func (e *Evaluator) FirstRoleAtLevel(ctx context.Context, resourceType model.ResourceType, resourceID string, level model.RoleLevel, globalOnly bool) (*model.RolePermission, error) {
	rows, err := e.VisibleRoles(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	rp := firstRow(rows, func(rp model.RolePermission) bool {
		return rp.Level() == level && (!globalOnly || rp.IsGlobal())
	})
	if rp == nil {
		return nil, errs.NotFound("no %s role available for %s %q", level, resourceType, resourceID)
	}
	return rp, nil
}

// RoleOf returns the role referenced by a user role, resolved against the
// resource's visible rows.
func (e *Evaluator) RoleOf(ctx context.Context, ur *model.UserRole) (*model.Role, error) {
	rp, err := e.ResolveTargetRole(ctx, ur.ResourceType, ur.ResourceID, ur.RoleID)
	if err != nil {
		return nil, err
	}
	return rp.Role, nil
}

func firstRow(rows []model.RolePermission, match func(model.RolePermission) bool) *model.RolePermission {
	for i := range rows {
		if match(rows[i]) {
			rp := rows[i]
			return &rp
		}
	}
	return nil
}
