package rbac

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

type MockRolesStore struct {
	mock.Mock
}

func (m *MockRolesStore) ListRolePermissions(ctx context.Context, resourceType, resourceID string) ([]model.RolePermission, error) {
	args := m.Called(ctx, resourceType, resourceID)
	rows, _ := args.Get(0).([]model.RolePermission)
	return rows, args.Error(1)
}

type MockCatalogStore struct {
	mock.Mock
}

func (m *MockCatalogStore) PermissionByName(ctx context.Context, name string) (*model.Permission, error) {
	args := m.Called(ctx, name)
	p, _ := args.Get(0).(*model.Permission)
	return p, args.Error(1)
}

func (m *MockCatalogStore) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	args := m.Called(ctx)
	perms, _ := args.Get(0).([]model.Permission)
	return perms, args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Resource(ctx context.Context, resourceType model.ResourceType, resourceID string) (*model.Resource, error) {
	args := m.Called(ctx, resourceType, resourceID)
	r, _ := args.Get(0).(*model.Resource)
	return r, args.Error(1)
}

func (m *MockDirectory) UserRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (*model.UserRole, error) {
	args := m.Called(ctx, userID, resourceType, resourceID)
	ur, _ := args.Get(0).(*model.UserRole)
	return ur, args.Error(1)
}
