package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

const (
	spaceID  = "space-1"
	ownerID  = "did:key:zOwner"
	adminID  = "did:key:zAdmin"
	memberID = "0xabc"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func row(id string, level model.RoleLevel, global bool, offset time.Duration, perms ...string) model.RolePermission {
	rp := model.RolePermission{
		ID:          "rp-" + id,
		RoleID:      "role-" + id,
		Permissions: perms,
		CreatedAt:   base.Add(offset),
		Role:        &model.Role{ID: "role-" + id, Name: id, Level: level},
	}
	if !global {
		rp.ResourceType = strPtr(string(model.ResourceSpace))
		rp.ResourceID = strPtr(spaceID)
	}
	return rp
}

type EvaluatorSuite struct {
	suite.Suite

	roles   *MockRolesStore
	catalog *MockCatalogStore
	dir     *MockDirectory
	eval    *Evaluator
	rows    []model.RolePermission
}

func (s *EvaluatorSuite) SetupTest() {
	s.roles = new(MockRolesStore)
	s.catalog = new(MockCatalogStore)
	s.dir = new(MockDirectory)
	s.eval = NewEvaluator(s.roles, NewCatalog(s.catalog, 16, time.Minute), s.dir)

	s.rows = []model.RolePermission{
		row("follower", model.LevelFollower, true, 0),
		row("owner", model.LevelOwner, false, 1*time.Minute),
		row("admin", model.LevelAdmin, false, 2*time.Minute, "perm-member"),
		row("member", model.LevelMember, false, 3*time.Minute),
		row("superadmin", model.LevelAdmin, false, 4*time.Minute, "perm-admin", "perm-member"),
	}

	s.roles.On("ListRolePermissions", mock.Anything, "space", spaceID).Return(s.rows, nil)
	s.dir.On("Resource", mock.Anything, model.ResourceSpace, spaceID).
		Return(&model.Resource{ID: spaceID, Type: model.ResourceSpace, OwnerID: ownerID}, nil)

	s.catalog.On("PermissionByName", mock.Anything, model.PermissionManageAdminRole).
		Return(&model.Permission{ID: "perm-admin", Name: model.PermissionManageAdminRole}, nil)
	s.catalog.On("PermissionByName", mock.Anything, model.PermissionManageMemberRole).
		Return(&model.Permission{ID: "perm-member", Name: model.PermissionManageMemberRole}, nil)
	s.catalog.On("PermissionByName", mock.Anything, mock.Anything).Return(nil, store.ErrPermissionNotFound)
}

func (s *EvaluatorSuite) operator(id, roleID string) *Operator {
	var ur *model.UserRole
	if roleID != "" {
		ur = &model.UserRole{ID: "ur-" + id, UserID: id, ResourceID: spaceID, ResourceType: model.ResourceSpace, RoleID: roleID}
	}
	s.dir.On("UserRole", mock.Anything, id, model.ResourceSpace, spaceID).Return(ur, nil)

	op, err := s.eval.ResolveOperator(context.Background(), model.ResourceSpace, spaceID, id)
	s.Require().NoError(err)
	return op
}

func (s *EvaluatorSuite) roleIDs(rows []model.RolePermission) []string {
	ids := make([]string, 0, len(rows))
	for _, rp := range rows {
		ids = append(ids, rp.RoleID)
	}
	return ids
}

func (s *EvaluatorSuite) TestResolveOperator() {
	op := s.operator(adminID, "role-admin")
	s.Equal(model.LevelAdmin, op.Level())
	s.False(op.IsOwner)
	s.True(op.holds("perm-member"))
	s.False(op.holds("perm-admin"))

	owner := s.operator(ownerID, "")
	s.True(owner.IsOwner)
	s.Nil(owner.Role)
}

func (s *EvaluatorSuite) TestResolveOperatorOwnerRoleLevel() {
	op := s.operator("did:key:zCoOwner", "role-owner")
	s.True(op.IsOwner)
}

func (s *EvaluatorSuite) TestResolveOperatorMissingResource() {
	s.dir.On("Resource", mock.Anything, model.ResourceEvent, "nope").Return(nil, nil)

	_, err := s.eval.ResolveOperator(context.Background(), model.ResourceEvent, "nope", adminID)
	s.ErrorIs(err, errs.ErrNotFound)
}

func (s *EvaluatorSuite) TestOwnerBypass() {
	op := s.operator(ownerID, "")
	for _, name := range []string{model.PermissionManageAdminRole, model.PermissionInviteUsers, "MANAGE_APPS", "NOT_A_PERMISSION"} {
		ok, err := s.eval.HasPermission(context.Background(), op, name)
		s.NoError(err)
		s.True(ok, name)
	}
}

func (s *EvaluatorSuite) TestHasPermission() {
	op := s.operator(adminID, "role-admin")
	ctx := context.Background()

	ok, err := s.eval.HasPermission(ctx, op, model.PermissionManageMemberRole)
	s.NoError(err)
	s.True(ok)

	ok, err = s.eval.HasPermission(ctx, op, model.PermissionManageAdminRole)
	s.NoError(err)
	s.False(ok)

	ok, err = s.eval.HasPermission(ctx, op, "MANAGE_ACCESS")
	s.NoError(err)
	s.False(ok)
}

func (s *EvaluatorSuite) TestRequireTier() {
	ctx := context.Background()
	op := s.operator(adminID, "role-admin")

	s.NoError(s.eval.RequireTier(ctx, op, model.LevelMember))
	s.NoError(s.eval.RequireTier(ctx, op, model.LevelFollower))
	s.ErrorIs(s.eval.RequireTier(ctx, op, model.LevelAdmin), errs.ErrAuthorization)

	super := s.operator("did:key:zSuper", "role-superadmin")
	s.NoError(s.eval.RequireTier(ctx, super, model.LevelAdmin))
}

func (s *EvaluatorSuite) TestAssignableRolesLattice() {
	ctx := context.Background()

	owner := s.operator(ownerID, "")
	rows, err := s.eval.ResolveAssignableRoles(ctx, model.ResourceSpace, spaceID, owner)
	s.NoError(err)
	s.Equal([]string{"role-follower", "role-admin", "role-member", "role-superadmin"}, s.roleIDs(rows))

	admin := s.operator(adminID, "role-admin")
	rows, err = s.eval.ResolveAssignableRoles(ctx, model.ResourceSpace, spaceID, admin)
	s.NoError(err)
	s.Equal([]string{"role-follower", "role-member"}, s.roleIDs(rows))

	member := s.operator(memberID, "role-member")
	rows, err = s.eval.ResolveAssignableRoles(ctx, model.ResourceSpace, spaceID, member)
	s.NoError(err)
	s.NotNil(rows)
	s.Empty(rows)
}

func (s *EvaluatorSuite) TestIsAssignable() {
	admin := s.operator(adminID, "role-admin")

	ok, err := s.eval.IsAssignable(context.Background(), admin, "role-member")
	s.NoError(err)
	s.True(ok)

	ok, err = s.eval.IsAssignable(context.Background(), admin, "role-superadmin")
	s.NoError(err)
	s.False(ok)
}

func (s *EvaluatorSuite) TestResolveTargetRole() {
	rp, err := s.eval.ResolveTargetRole(context.Background(), model.ResourceSpace, spaceID, "role-member")
	s.NoError(err)
	s.Equal(model.LevelMember, rp.Level())

	_, err = s.eval.ResolveTargetRole(context.Background(), model.ResourceSpace, spaceID, "role-ghost")
	s.ErrorIs(err, errs.ErrNotFound)
	s.NotErrorIs(err, errs.ErrAuthorization)
}

func (s *EvaluatorSuite) TestFirstRoleAtLevel() {
	ctx := context.Background()

	rp, err := s.eval.FirstRoleAtLevel(ctx, model.ResourceSpace, spaceID, model.LevelFollower, true)
	s.NoError(err)
	s.Equal("role-follower", rp.RoleID)

	rp, err = s.eval.FirstRoleAtLevel(ctx, model.ResourceSpace, spaceID, model.LevelAdmin, false)
	s.NoError(err)
	s.Equal("role-admin", rp.RoleID)

	_, err = s.eval.FirstRoleAtLevel(ctx, model.ResourceSpace, spaceID, model.LevelMember, true)
	s.ErrorIs(err, errs.ErrNotFound)
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func TestRequiredPermission(t *testing.T) {
	assert.Equal(t, model.PermissionManageAdminRole, RequiredPermission(model.LevelAdmin))
	for _, l := range []model.RoleLevel{model.LevelOwner, model.LevelMember, model.LevelFollower} {
		assert.Equal(t, model.PermissionManageMemberRole, RequiredPermission(l))
	}
}

func TestLatticeSafetyForAdmins(t *testing.T) {
	levels := []model.RoleLevel{model.LevelOwner, model.LevelAdmin, model.LevelMember, model.LevelFollower}
	var rows []model.RolePermission
	for i, l := range levels {
		rows = append(rows, row(string(l), l, i%2 == 0, time.Duration(i)*time.Second))
	}

	roles := new(MockRolesStore)
	roles.On("ListRolePermissions", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
	e := NewEvaluator(roles, NewCatalog(new(MockCatalogStore), 1, time.Minute), new(MockDirectory))

	adminOp := &Operator{ResourceType: model.ResourceSpace, Role: &model.Role{Level: model.LevelAdmin}}
	got, err := e.ResolveAssignableRoles(context.Background(), model.ResourceSpace, spaceID, adminOp)
	require.NoError(t, err)
	for _, rp := range got {
		assert.NotEqual(t, model.LevelOwner, rp.Level())
		assert.NotEqual(t, model.LevelAdmin, rp.Level())
	}

	ownerOp := &Operator{ResourceType: model.ResourceSpace, IsOwner: true}
	got, err = e.ResolveAssignableRoles(context.Background(), model.ResourceSpace, spaceID, ownerOp)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, rp := range got {
		assert.NotEqual(t, model.LevelOwner, rp.Level())
	}
}
