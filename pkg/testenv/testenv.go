// Package testenv wires an in-memory graph store, a mutation gate and an RBAC
// evaluator over a fixed role catalog for service and handler tests.
package testenv

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/membership-gateway/pkg/config"
	"github.com/doodlesbykumbi/membership-gateway/pkg/credential"
	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/gateway"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph/graphtest"
	"github.com/doodlesbykumbi/membership-gateway/pkg/logging"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/rbac"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Role ids of the fixed catalog. All four are global rules.
const (
	RoleOwner    = "role-owner"
	RoleAdmin    = "role-admin"
	RoleMember   = "role-member"
	RoleFollower = "role-follower"
)

// Permission ids of the fixed catalog.
var permissionIDs = map[string]string{
	model.PermissionManageAdminRole:  "perm-manage-admin",
	model.PermissionManageMemberRole: "perm-manage-member",
	model.PermissionInviteUsers:      "perm-invite",
}

// PermissionID returns the catalog id of a permission name.
func PermissionID(name string) string {
	return permissionIDs[name]
}

// Env is a complete set of collaborators backed by in-memory fakes.
type Env struct {
	Graph     *graphtest.Server
	Client    *graph.Client
	Docs      *graph.Documents
	Gate      *gateway.Gate
	Evaluator *rbac.Evaluator
	Roles     *Roles
	Broker    *Broker
	Clock     *Clock
}

// New builds an Env whose gate runs in mode.
func New(t testing.TB, mode string) *Env {
	t.Helper()
	srv := graphtest.NewServer()
	t.Cleanup(srv.Close)

	client := graph.NewClient(srv.Endpoint(), 5*time.Second)
	broker := &Broker{signers: map[string]*credential.Signer{}}
	gate, err := gateway.New(broker, client, gateway.Options{
		Mode:            mode,
		WaitTimeout:     5 * time.Second,
		MutationTimeout: 5 * time.Second,
		Logger:          logging.Discard(),
	})
	require.NoError(t, err)

	roles := NewRoles()
	docs := graph.NewDocuments(client)
	return &Env{
		Graph:     srv,
		Client:    client,
		Docs:      docs,
		Gate:      gate,
		Evaluator: rbac.NewEvaluator(roles, rbac.NewCatalog(roles, 16, time.Minute), docs),
		Roles:     roles,
		Broker:    broker,
		Clock:     &Clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

// Isolated is New in the default gateway mode.
func Isolated(t testing.TB) *Env {
	return New(t, config.GatewayModeIsolated)
}

// AddResource registers a resource and provisions its signing identity.
func (e *Env) AddResource(t testing.TB, r model.Resource) *credential.Signer {
	t.Helper()
	s := e.Broker.provision(t, r.ID)
	e.Graph.AddResource(r, s.DID())
	return s
}

// Grant stores a UserRole directly, bypassing the gate.
func (e *Env) Grant(userID string, resourceType model.ResourceType, resourceID, roleID string) model.UserRole {
	ur := model.UserRole{
		ID:           "ur-" + model.NormalizeID(userID) + "-" + resourceID,
		UserID:       model.NormalizeID(userID),
		ResourceID:   resourceID,
		ResourceType: resourceType,
		RoleID:       roleID,
		CreatedAt:    e.Clock.Now(),
		UpdatedAt:    e.Clock.Now(),
	}
	e.Graph.PutUserRole(ur)
	return ur
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Broker hands out signers provisioned by AddResource.
type Broker struct {
	mu      sync.Mutex
	signers map[string]*credential.Signer
	Calls   int

	// OnAcquire, when set, runs before every acquisition with the call number.
	OnAcquire func(call int, resourceID string)
}

func (b *Broker) provision(t testing.TB, resourceID string) *credential.Signer {
	b.mu.Lock()
	defer b.mu.Unlock()
	seed := bytes.Repeat([]byte{byte(len(b.signers) + 1)}, credential.SeedSize)
	s, err := credential.NewSigner(resourceID, seed)
	require.NoError(t, err)
	b.signers[resourceID] = s
	return s
}

func (b *Broker) Acquire(ctx context.Context, resourceID string) (*credential.Signer, error) {
	b.mu.Lock()
	b.Calls++
	call, hook := b.Calls, b.OnAcquire
	b.mu.Unlock()
	if hook != nil {
		hook(call, resourceID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.signers[resourceID]
	if !ok {
		return nil, errs.Credential(store.ErrSeedNotFound, "no signing credential for resource %q", resourceID)
	}
	return s, nil
}

// Signer returns the identity provisioned for resourceID.
func (b *Broker) Signer(resourceID string) *credential.Signer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signers[resourceID]
}

// Roles is an in-memory RolesStore and CatalogStore.
type Roles struct {
	mu   sync.Mutex
	rows []model.RolePermission
}

// NewRoles returns the default catalog: owners hold everything, admins manage
// members and invite, members and followers hold nothing.
func NewRoles() *Roles {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	global := func(id string, level model.RoleLevel, offset int, perms ...string) model.RolePermission {
		ids := make(pq.StringArray, 0, len(perms))
		for _, p := range perms {
			ids = append(ids, permissionIDs[p])
		}
		return model.RolePermission{
			ID:          "rp-" + id,
			RoleID:      id,
			Permissions: ids,
			CreatedAt:   base.Add(time.Duration(offset) * time.Minute),
			Role:        &model.Role{ID: id, Name: string(level), Level: level, CreatedAt: base},
		}
	}
	return &Roles{rows: []model.RolePermission{
		global(RoleOwner, model.LevelOwner, 0, model.PermissionManageAdminRole, model.PermissionManageMemberRole, model.PermissionInviteUsers),
		global(RoleAdmin, model.LevelAdmin, 1, model.PermissionManageMemberRole, model.PermissionInviteUsers),
		global(RoleMember, model.LevelMember, 2),
		global(RoleFollower, model.LevelFollower, 3),
	}}
}

// SetPermissions replaces the permissions of every row for roleID.
func (r *Roles) SetPermissions(roleID string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(pq.StringArray, 0, len(names))
	for _, n := range names {
		ids = append(ids, permissionIDs[n])
	}
	for i := range r.rows {
		if r.rows[i].RoleID == roleID {
			r.rows[i].Permissions = ids
		}
	}
}

// Remove drops every row for roleID.
func (r *Roles) Remove(roleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, rp := range r.rows {
		if rp.RoleID != roleID {
			kept = append(kept, rp)
		}
	}
	r.rows = kept
}

// AddScoped adds a row visible only on one resource.
func (r *Roles) AddScoped(roleID string, level model.RoleLevel, resourceType model.ResourceType, resourceID string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt := string(resourceType)
	rid := resourceID
	ids := make(pq.StringArray, 0, len(names))
	for _, n := range names {
		ids = append(ids, permissionIDs[n])
	}
	r.rows = append(r.rows, model.RolePermission{
		ID:           "rp-" + roleID + "-" + resourceID,
		RoleID:       roleID,
		ResourceType: &rt,
		ResourceID:   &rid,
		Permissions:  ids,
		CreatedAt:    time.Date(2024, 1, 2, 0, len(r.rows), 0, 0, time.UTC),
		Role:         &model.Role{ID: roleID, Name: roleID, Level: level},
	})
}

func (r *Roles) ListRolePermissions(ctx context.Context, resourceType, resourceID string) ([]model.RolePermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.RolePermission{}
	for _, rp := range r.rows {
		if rp.IsGlobal() || (*rp.ResourceType == resourceType && *rp.ResourceID == resourceID) {
			out = append(out, rp)
		}
	}
	return out, nil
}

func (r *Roles) PermissionByName(ctx context.Context, name string) (*model.Permission, error) {
	id, ok := permissionIDs[name]
	if !ok {
		return nil, store.ErrPermissionNotFound
	}
	return &model.Permission{ID: id, Name: name}, nil
}

func (r *Roles) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	return []model.Permission{
		{ID: permissionIDs[model.PermissionInviteUsers], Name: model.PermissionInviteUsers},
		{ID: permissionIDs[model.PermissionManageAdminRole], Name: model.PermissionManageAdminRole},
		{ID: permissionIDs[model.PermissionManageMemberRole], Name: model.PermissionManageMemberRole},
	}, nil
}
