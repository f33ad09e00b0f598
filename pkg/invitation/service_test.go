package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/doodlesbykumbi/membership-gateway/pkg/audit"
	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/logging"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/testenv"
)

func TestMain(m *testing.M) {
	audit.SetEnabled(false)
	m.Run()
}

const (
	space   = "space-1"
	owner   = "did:key:zOwner"
	admin   = "0xadmin"
	invitee = "0xinvitee"
)

type ServiceSuite struct {
	suite.Suite
	env *testenv.Env
	svc *Service
	ctx context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.env = testenv.Isolated(s.T())
	s.env.AddResource(s.T(), model.Resource{ID: space, Type: model.ResourceSpace, OwnerID: owner})
	s.env.AddResource(s.T(), model.Resource{ID: "space-2", Type: model.ResourceSpace, OwnerID: owner})
	s.env.Grant(admin, model.ResourceSpace, space, testenv.RoleAdmin)
	s.svc = NewService(s.env.Docs, s.env.Gate, s.env.Evaluator, Options{
		TTL:    time.Hour,
		Now:    s.env.Clock.Now,
		Logger: logging.Discard(),
	})
	s.ctx = context.Background()
}

func (s *ServiceSuite) put(id, resourceID string, status model.InvitationStatus, expiresIn time.Duration) model.Invitation {
	now := s.env.Clock.Now()
	inv := model.Invitation{
		ID:         id,
		InviterID:  owner,
		InviteeID:  invitee,
		Resource:   model.ResourceSpace,
		ResourceID: resourceID,
		RoleID:     testenv.RoleMember,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(expiresIn),
		UpdatedAt:  now,
		LastSentAt: now,
	}
	s.env.Graph.PutInvitation(inv)
	return inv
}

func (s *ServiceSuite) stored(id string) model.Invitation {
	inv, ok := s.env.Graph.Invitation(id)
	s.Require().True(ok)
	return inv
}

func (s *ServiceSuite) TestCreate() {
	inv, err := s.svc.Create(s.ctx, admin, CreateInput{
		InviteeID:    "0xINVITEE",
		ResourceType: model.ResourceSpace,
		ResourceID:   space,
		RoleID:       testenv.RoleMember,
		Message:      " welcome ",
	})
	s.Require().NoError(err)

	s.Equal(model.InvitationPending, inv.Status)
	s.Equal(invitee, inv.InviteeID)
	s.Equal(admin, inv.InviterID)
	s.Equal(s.env.Clock.Now().Add(time.Hour), inv.ExpiresAt)
	s.Equal(inv.CreatedAt, inv.LastSentAt)
	s.Require().NotNil(inv.Message)
	s.Equal("welcome", *inv.Message)

	writes := s.env.Graph.Writes()
	s.Require().Len(writes, 1)
	s.Equal(graph.OpCreateInvitation, writes[0].Operation)
	s.Equal(s.env.Broker.Signer(space).DID(), writes[0].DID)
}

func (s *ServiceSuite) TestCreateRejections() {
	s.env.Grant("0xmember", model.ResourceSpace, space, testenv.RoleMember)
	s.put("live", space, model.InvitationPending, time.Hour)

	tests := []struct {
		name     string
		operator string
		input    CreateInput
		want     error
	}{
		{"self", admin, CreateInput{InviteeID: admin, ResourceType: model.ResourceSpace, ResourceID: space, RoleID: testenv.RoleMember}, errs.ErrValidation},
		{"missing resource", admin, CreateInput{InviteeID: "0xnew", ResourceType: model.ResourceSpace, ResourceID: "nope", RoleID: testenv.RoleMember}, errs.ErrNotFound},
		{"no invite permission", "0xmember", CreateInput{InviteeID: "0xnew", ResourceType: model.ResourceSpace, ResourceID: space, RoleID: testenv.RoleFollower}, errs.ErrAuthorization},
		{"unknown role", admin, CreateInput{InviteeID: "0xnew", ResourceType: model.ResourceSpace, ResourceID: space, RoleID: "role-ghost"}, errs.ErrNotFound},
		{"role above lattice", admin, CreateInput{InviteeID: "0xnew", ResourceType: model.ResourceSpace, ResourceID: space, RoleID: testenv.RoleAdmin}, errs.ErrAuthorization},
		{"already a member", admin, CreateInput{InviteeID: "0xmember", ResourceType: model.ResourceSpace, ResourceID: space, RoleID: testenv.RoleMember}, errs.ErrConflict},
		{"pending invitation", admin, CreateInput{InviteeID: invitee, ResourceType: model.ResourceSpace, ResourceID: space, RoleID: testenv.RoleMember}, errs.ErrConflict},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Create(s.ctx, tt.operator, tt.input)
			s.ErrorIs(err, tt.want)
		})
	}
	s.Empty(s.env.Graph.Writes())
}

func (s *ServiceSuite) TestCreateIgnoresExpiredPendingInvitation() {
	s.put("stale", space, model.InvitationPending, -time.Minute)
	_, err := s.svc.Create(s.ctx, owner, CreateInput{InviteeID: invitee, ResourceType: model.ResourceSpace, ResourceID: space, RoleID: testenv.RoleAdmin})
	s.NoError(err)
}

func (s *ServiceSuite) TestRejectPendingInvitation() {
	s.put("inv1", space, model.InvitationPending, time.Hour)

	inv, err := s.svc.Reject(s.ctx, invitee, "inv1")
	s.Require().NoError(err)
	s.Equal(model.InvitationRejected, inv.Status)

	stored := s.stored("inv1")
	s.Equal(model.InvitationRejected, stored.Status)
	s.True(stored.IsRead)
	s.Equal(s.env.Clock.Now(), stored.UpdatedAt)
}

func (s *ServiceSuite) TestCancelByNonInviterChangesNothing() {
	s.put("inv1", space, model.InvitationPending, time.Hour)

	_, err := s.svc.Cancel(s.ctx, invitee, "inv1")
	s.ErrorIs(err, errs.ErrAuthorization)
	s.Equal(model.InvitationPending, s.stored("inv1").Status)
	s.Empty(s.env.Graph.Writes())
	s.Zero(s.env.Broker.Calls)
}

func (s *ServiceSuite) TestCancelByInviter() {
	s.put("inv1", space, model.InvitationPending, time.Hour)

	_, err := s.svc.Cancel(s.ctx, owner, "inv1")
	s.Require().NoError(err)
	stored := s.stored("inv1")
	s.Equal(model.InvitationCancelled, stored.Status)
	s.False(stored.IsRead)
}

func (s *ServiceSuite) TestTerminalStatusesAreFinal() {
	s.put("inv1", space, model.InvitationPending, time.Hour)
	_, err := s.svc.Reject(s.ctx, invitee, "inv1")
	s.Require().NoError(err)

	_, err = s.svc.Reject(s.ctx, invitee, "inv1")
	s.ErrorIs(err, errs.ErrInvalidStatus)
	_, err = s.svc.Cancel(s.ctx, owner, "inv1")
	s.ErrorIs(err, errs.ErrInvalidStatus)
	s.Equal(model.InvitationRejected, s.stored("inv1").Status)
}

func (s *ServiceSuite) TestExpiryTakesPrecedence() {
	s.put("inv1", space, model.InvitationPending, time.Minute)
	s.env.Clock.Advance(time.Minute)

	_, err := s.svc.Reject(s.ctx, invitee, "inv1")
	s.ErrorIs(err, errs.ErrExpired)
	_, err = s.svc.Cancel(s.ctx, "0xstranger", "inv1")
	s.ErrorIs(err, errs.ErrExpired)
	s.Equal(model.InvitationPending, s.stored("inv1").Status)
}

func (s *ServiceSuite) TestMissingInvitation() {
	_, err := s.svc.Reject(s.ctx, invitee, "nope")
	s.ErrorIs(err, errs.ErrNotFound)
}

func (s *ServiceSuite) TestCredentialFailureStopsTransition() {
	s.put("inv1", "space-unprovisioned", model.InvitationPending, time.Hour)

	_, err := s.svc.Reject(s.ctx, invitee, "inv1")
	s.ErrorIs(err, errs.ErrCredential)
	s.Equal(model.InvitationPending, s.stored("inv1").Status)
}

func (s *ServiceSuite) TestCompleteDetectsRacedTransition() {
	s.put("inv1", space, model.InvitationPending, time.Hour)
	inv, err := s.svc.Prepare(s.ctx, invitee, "inv1", ActionReject)
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, owner, "inv1")
	s.Require().NoError(err)

	_, err = s.svc.Complete(s.ctx, invitee, inv, ActionReject)
	s.ErrorIs(err, errs.ErrInvalidStatus)
	s.Equal(model.InvitationCancelled, s.stored("inv1").Status)
}

func (s *ServiceSuite) TestMarkRead() {
	s.put("inv1", space, model.InvitationPending, time.Hour)

	_, err := s.svc.MarkRead(s.ctx, "0xstranger", "inv1")
	s.ErrorIs(err, errs.ErrNotFound)
	s.False(s.stored("inv1").IsRead)

	inv, err := s.svc.MarkRead(s.ctx, owner, "inv1")
	s.Require().NoError(err)
	s.True(inv.IsRead)
	s.Equal(model.InvitationPending, inv.Status)

	// already read: no write
	_, err = s.svc.MarkRead(s.ctx, invitee, "inv1")
	s.Require().NoError(err)
	s.Len(s.env.Graph.Writes(), 1)
}

func (s *ServiceSuite) TestMarkAllRead() {
	s.put("a", space, model.InvitationPending, time.Hour)
	s.put("b", "space-2", model.InvitationRejected, time.Hour)

	n, err := s.svc.MarkAllRead(s.ctx, invitee, nil)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.True(s.stored("a").IsRead)
	s.True(s.stored("b").IsRead)

	dids := map[string]string{}
	for _, w := range s.env.Graph.Writes() {
		dids[w.ResourceID] = w.DID
	}
	s.Equal(s.env.Broker.Signer(space).DID(), dids[space])
	s.Equal(s.env.Broker.Signer("space-2").DID(), dids["space-2"])

	n, err = s.svc.MarkAllRead(s.ctx, invitee, nil)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestMarkAllReadWithIDs() {
	s.put("a", space, model.InvitationPending, time.Hour)
	s.put("b", space, model.InvitationPending, time.Hour)

	_, err := s.svc.MarkAllRead(s.ctx, invitee, []string{"a", "missing"})
	s.ErrorIs(err, errs.ErrNotFound)
	s.False(s.stored("a").IsRead)

	n, err := s.svc.MarkAllRead(s.ctx, invitee, []string{"a", "a"})
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(s.stored("b").IsRead)
}

func (s *ServiceSuite) TestQueries() {
	s.put("live", space, model.InvitationPending, time.Hour)
	s.put("stale", "space-2", model.InvitationPending, -time.Hour)
	s.put("done", space, model.InvitationRejected, time.Hour)

	views, err := s.svc.List(s.ctx, invitee, Filter{})
	s.Require().NoError(err)
	s.Len(views, 3)
	expired := map[string]bool{}
	for _, v := range views {
		expired[v.ID] = v.Expired
	}
	s.Equal(map[string]bool{"live": false, "stale": true, "done": false}, expired)

	views, err = s.svc.List(s.ctx, invitee, Filter{Status: model.InvitationRejected})
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal("done", views[0].ID)

	pending, err := s.svc.Pending(s.ctx, invitee)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("live", pending[0].ID)

	n, err := s.svc.UnreadCount(s.ctx, invitee)
	s.Require().NoError(err)
	s.Equal(1, n)

	views, err = s.svc.List(s.ctx, owner, Filter{})
	s.Require().NoError(err)
	s.Empty(views)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestDefaults(t *testing.T) {
	svc := NewService(nil, nil, nil, Options{})
	assert.Equal(t, DefaultTTL, svc.opts.TTL)
	require.NotNil(t, svc.opts.Now)
	assert.Equal(t, time.UTC, svc.opts.Now().Location())
}
