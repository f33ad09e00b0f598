package membership

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/audit"
	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/gateway"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/identity"
	"github.com/doodlesbykumbi/membership-gateway/pkg/invitation"
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/rbac"
)

// Reader looks up user roles in the document graph.
type Reader interface {
	UserRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (*model.UserRole, error)
}

type Options struct {
	Now     func() time.Time
	Metrics *metrics.Metrics
	Logger  log.FieldLogger
}

// Service manages role assignments on spaces and events.
type Service struct {
	docs        Reader
	gate        *gateway.Gate
	eval        *rbac.Evaluator
	invitations *invitation.Service
	opts        Options
}

func NewService(docs Reader, gate *gateway.Gate, eval *rbac.Evaluator, invitations *invitation.Service, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Service{docs: docs, gate: gate, eval: eval, invitations: invitations, opts: opts}
}

// Target names a resource and, for operator-driven changes, a user and role.
type Target struct {
	ResourceType model.ResourceType
	ResourceID   string
	UserID       string
	RoleID       string
}

func (t Target) event(operation, operatorID string) audit.MembershipEvent {
	return audit.MembershipEvent{
		Operation:    operation,
		OperatorID:   operatorID,
		UserID:       t.UserID,
		ResourceType: string(t.ResourceType),
		ResourceID:   t.ResourceID,
		RoleID:       t.RoleID,
	}
}

func validate(t Target, needUser, needRole bool) error {
	details := map[string]string{}
	if !t.ResourceType.Valid() {
		details["resourceType"] = "must be one of space, event"
	}
	if strings.TrimSpace(t.ResourceID) == "" {
		details["resourceId"] = "is required"
	}
	if needUser && strings.TrimSpace(t.UserID) == "" {
		details["userId"] = "is required"
	}
	if needRole && strings.TrimSpace(t.RoleID) == "" {
		details["roleId"] = "is required"
	}
	if len(details) > 0 {
		return errs.ValidationDetails("invalid request", details)
	}
	return nil
}

// Add assigns a role to a user who holds none on the resource.
func (s *Service) Add(ctx context.Context, operatorID string, t Target) (ur *model.UserRole, err error) {
	defer func() { s.record(ctx, t.event("add", operatorID), err) }()

	if err := validate(t, true, true); err != nil {
		return nil, err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return nil, err
	}
	target, err := s.eval.ResolveTargetRole(ctx, t.ResourceType, t.ResourceID, t.RoleID)
	if err != nil {
		return nil, err
	}
	if target.Level() == model.LevelOwner {
		return nil, errs.Authorization("the owner role cannot be assigned")
	}
	if err := s.eval.RequireTier(ctx, op, target.Level()); err != nil {
		return nil, err
	}

	return gateway.Do(ctx, s.gate, t.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.UserRole, error) {
		return s.create(ctx, m, t.UserID, t.ResourceType, t.ResourceID, t.RoleID)
	})
}

// Remove revokes a user's role. Owners cannot be removed.
func (s *Service) Remove(ctx context.Context, operatorID string, t Target) (err error) {
	defer func() { s.record(ctx, t.event("remove", operatorID), err) }()

	if err := validate(t, true, false); err != nil {
		return err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return err
	}
	existing, err := s.existing(ctx, t)
	if err != nil {
		return err
	}
	role, err := s.eval.RoleOf(ctx, existing)
	if err != nil {
		return err
	}
	if role.Level == model.LevelOwner {
		return errs.Authorization("the owner role cannot be removed")
	}
	if err := s.eval.RequireTier(ctx, op, role.Level); err != nil {
		return err
	}

	return s.gate.WithResourceCredential(ctx, t.ResourceID, func(ctx context.Context, m graph.Mutator) error {
		return graph.DeleteUserRole(ctx, m, existing.ID)
	})
}

// Update moves a user to another role. The operator needs the tier of both
// the current and the new role.
func (s *Service) Update(ctx context.Context, operatorID string, t Target) (ur *model.UserRole, err error) {
	defer func() { s.record(ctx, t.event("update", operatorID), err) }()

	if err := validate(t, true, true); err != nil {
		return nil, err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return nil, err
	}
	target, err := s.eval.ResolveTargetRole(ctx, t.ResourceType, t.ResourceID, t.RoleID)
	if err != nil {
		return nil, err
	}
	if target.Level() == model.LevelOwner {
		return nil, errs.Authorization("the owner role cannot be assigned")
	}
	if err := s.eval.RequireTier(ctx, op, target.Level()); err != nil {
		return nil, err
	}
	existing, err := s.existing(ctx, t)
	if err != nil {
		return nil, err
	}
	current, err := s.eval.RoleOf(ctx, existing)
	if err != nil {
		return nil, err
	}
	if current.Level == model.LevelOwner {
		return nil, errs.Authorization("the owner role cannot be changed")
	}
	if err := s.eval.RequireTier(ctx, op, current.Level); err != nil {
		return nil, err
	}

	return gateway.Do(ctx, s.gate, t.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.UserRole, error) {
		return graph.UpdateUserRole(ctx, m, existing.ID, t.RoleID, s.opts.Now())
	})
}

// Join grants the resource's member role to the operator. Gated resources
// can only be joined by invitation.
func (s *Service) Join(ctx context.Context, operatorID string, t Target) (ur *model.UserRole, err error) {
	t.UserID = operatorID
	defer func() {
		if ur != nil {
			t.RoleID = ur.RoleID
		}
		s.record(ctx, t.event("join", operatorID), err)
	}()

	if err := validate(t, true, false); err != nil {
		return nil, err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return nil, err
	}
	if op.Resource.Gated {
		return nil, errs.Validation("%s %q requires an invitation", t.ResourceType, t.ResourceID)
	}
	if op.UserRole != nil {
		return nil, errs.Conflict("already a member of %s %q", t.ResourceType, t.ResourceID)
	}
	role, err := s.eval.FirstRoleAtLevel(ctx, t.ResourceType, t.ResourceID, model.LevelMember, false)
	if err != nil {
		return nil, err
	}

	return gateway.Do(ctx, s.gate, t.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.UserRole, error) {
		return s.create(ctx, m, operatorID, t.ResourceType, t.ResourceID, role.RoleID)
	})
}

// Follow grants the global follower role to the operator.
func (s *Service) Follow(ctx context.Context, operatorID string, t Target) (ur *model.UserRole, err error) {
	t.UserID = operatorID
	defer func() {
		if ur != nil {
			t.RoleID = ur.RoleID
		}
		s.record(ctx, t.event("follow", operatorID), err)
	}()

	if err := validate(t, true, false); err != nil {
		return nil, err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return nil, err
	}
	role, err := s.eval.FirstRoleAtLevel(ctx, t.ResourceType, t.ResourceID, model.LevelFollower, true)
	if err != nil {
		return nil, err
	}
	if op.UserRole != nil {
		return nil, errs.Conflict("already holds a role on %s %q", t.ResourceType, t.ResourceID)
	}

	return gateway.Do(ctx, s.gate, t.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.UserRole, error) {
		return s.create(ctx, m, operatorID, t.ResourceType, t.ResourceID, role.RoleID)
	})
}

// Unfollow removes the operator's follower role. Any other role is left
// alone and reported as not found.
func (s *Service) Unfollow(ctx context.Context, operatorID string, t Target) (err error) {
	t.UserID = operatorID
	defer func() { s.record(ctx, t.event("unfollow", operatorID), err) }()

	if err := validate(t, true, false); err != nil {
		return err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return err
	}
	if op.UserRole == nil || op.Level() != model.LevelFollower {
		return errs.NotFound("not following %s %q", t.ResourceType, t.ResourceID)
	}

	return s.gate.WithResourceCredential(ctx, t.ResourceID, func(ctx context.Context, m graph.Mutator) error {
		return graph.DeleteUserRole(ctx, m, op.UserRole.ID)
	})
}

// Accepted is the outcome of accepting an invitation.
type Accepted struct {
	Invitation *model.Invitation `json:"invitation"`
	UserRole   *model.UserRole   `json:"userRole"`
}

// AcceptInvitation grants the invited role to the operator and marks the
// invitation accepted. An existing role on the resource is replaced. The
// guards rerun under the resource identity before the role is written.
func (s *Service) AcceptInvitation(ctx context.Context, operatorID, invitationID string) (res *Accepted, err error) {
	inv, err := s.invitations.Prepare(ctx, operatorID, invitationID, invitation.ActionAccept)
	if err != nil {
		return nil, err
	}

	t := Target{ResourceType: inv.Resource, ResourceID: inv.ResourceID, UserID: operatorID, RoleID: inv.RoleID}
	defer func() { s.record(ctx, t.event("accept", operatorID), err) }()

	if _, err := s.eval.ResolveTargetRole(ctx, inv.Resource, inv.ResourceID, inv.RoleID); err != nil {
		return nil, err
	}

	ur, err := gateway.Do(ctx, s.gate, inv.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.UserRole, error) {
		docs := graph.NewDocuments(m)
		current, err := docs.Invitation(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		if _, err := invitation.Guard(current, invitation.ActionAccept, operatorID, s.opts.Now()); err != nil {
			return nil, err
		}

		existing, err := docs.UserRole(ctx, operatorID, inv.Resource, inv.ResourceID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return s.create(ctx, m, operatorID, inv.Resource, inv.ResourceID, inv.RoleID)
		}
		if existing.RoleID == inv.RoleID {
			return existing, nil
		}
		return graph.UpdateUserRole(ctx, m, existing.ID, inv.RoleID, s.opts.Now())
	})
	if err != nil {
		return nil, err
	}

	accepted, err := s.invitations.Complete(ctx, operatorID, inv, invitation.ActionAccept)
	if err != nil {
		return nil, err
	}
	return &Accepted{Invitation: accepted, UserRole: ur}, nil
}

// AssignableRoles lists the roles the operator may hand out on a resource.
func (s *Service) AssignableRoles(ctx context.Context, operatorID string, t Target) ([]model.RolePermission, error) {
	if err := validate(t, false, false); err != nil {
		return nil, err
	}
	op, err := s.eval.ResolveOperator(ctx, t.ResourceType, t.ResourceID, operatorID)
	if err != nil {
		return nil, err
	}
	return s.eval.ResolveAssignableRoles(ctx, t.ResourceType, t.ResourceID, op)
}

func (s *Service) existing(ctx context.Context, t Target) (*model.UserRole, error) {
	ur, err := s.docs.UserRole(ctx, t.UserID, t.ResourceType, t.ResourceID)
	if err != nil {
		return nil, err
	}
	if ur == nil {
		return nil, errs.NotFound("user %q holds no role on %s %q", t.UserID, t.ResourceType, t.ResourceID)
	}
	return ur, nil
}

// create checks for an existing role under the resource identity and writes
// a new one.
func (s *Service) create(ctx context.Context, m graph.Mutator, userID string, resourceType model.ResourceType, resourceID, roleID string) (*model.UserRole, error) {
	existing, err := graph.NewDocuments(m).UserRole(ctx, userID, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflict("user %q already holds a role on %s %q", userID, resourceType, resourceID)
	}

	now := s.opts.Now()
	return graph.CreateUserRole(ctx, m, model.UserRole{
		ID:           uuid.NewString(),
		UserID:       model.NormalizeID(userID),
		ResourceID:   resourceID,
		ResourceType: resourceType,
		RoleID:       roleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *Service) record(ctx context.Context, ev audit.MembershipEvent, err error) {
	ev.ClientIP = identity.ClientIPFrom(ctx)
	ev.Success = err == nil
	if err != nil {
		ev.ErrorMessage = err.Error()
		s.opts.Logger.WithFields(log.Fields{
			"operation":     ev.Operation,
			"operator":      ev.OperatorID,
			"resource_type": ev.ResourceType,
			"resource_id":   ev.ResourceID,
		}).WithError(err).Info("membership operation failed")
	}
	s.opts.Metrics.MembershipOperationsTotal.WithLabelValues(ev.Operation, metrics.Outcome(err)).Inc()
	audit.Log(ev)
}
