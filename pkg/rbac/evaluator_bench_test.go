package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

type staticRoles []model.RolePermission

func (s staticRoles) ListRolePermissions(context.Context, string, string) ([]model.RolePermission, error) {
	return s, nil
}

type staticCatalog map[string]string

func (c staticCatalog) PermissionByName(_ context.Context, name string) (*model.Permission, error) {
	id, ok := c[name]
	if !ok {
		return nil, store.ErrPermissionNotFound
	}
	return &model.Permission{ID: id, Name: name}, nil
}

func (c staticCatalog) ListPermissions(context.Context) ([]model.Permission, error) {
	return nil, nil
}

type staticDirectory struct{}

func (staticDirectory) Resource(_ context.Context, t model.ResourceType, id string) (*model.Resource, error) {
	return &model.Resource{ID: id, Type: t, OwnerID: ownerID}, nil
}

func (staticDirectory) UserRole(_ context.Context, userID string, t model.ResourceType, id string) (*model.UserRole, error) {
	return &model.UserRole{ID: "ur-" + userID, UserID: userID, ResourceType: t, ResourceID: id, RoleID: "role-admin"}, nil
}

func BenchmarkEvaluator(b *testing.B) {
	rows := staticRoles{
		row("follower", model.LevelFollower, true, 0),
		row("owner", model.LevelOwner, false, time.Minute),
		row("admin", model.LevelAdmin, false, 2*time.Minute, "perm-member"),
		row("member", model.LevelMember, false, 3*time.Minute),
	}
	catalog := staticCatalog{model.PermissionManageMemberRole: "perm-member"}
	eval := NewEvaluator(rows, NewCatalog(catalog, 16, time.Minute), staticDirectory{})
	ctx := context.Background()

	b.Run("ResolveOperator", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_, _ = eval.ResolveOperator(ctx, model.ResourceSpace, spaceID, adminID)
		}
	})

	b.Run("HasPermission cached", func(b *testing.B) {
		op, err := eval.ResolveOperator(ctx, model.ResourceSpace, spaceID, adminID)
		if err != nil {
			b.Fatal(err)
		}

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_, _ = eval.HasPermission(ctx, op, model.PermissionManageMemberRole)
		}
	})

	b.Run("ResolveAssignableRoles", func(b *testing.B) {
		op, err := eval.ResolveOperator(ctx, model.ResourceSpace, spaceID, adminID)
		if err != nil {
			b.Fatal(err)
		}

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_, _ = eval.ResolveAssignableRoles(ctx, model.ResourceSpace, spaceID, op)
		}
	})
}
