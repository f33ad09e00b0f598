package invitation

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
	"github.com/doodlesbykumbi/membership-gateway/pkg/metrics"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/rbac"
)

const DefaultTTL = 7 * 24 * time.Hour

// Reader is the read side of the document graph used by the service.
type Reader interface {
	Invitation(ctx context.Context, id string) (*model.Invitation, error)
	Invitations(ctx context.Context, q graph.InvitationQuery) ([]model.Invitation, error)
	UserRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (*model.UserRole, error)
}

type Options struct {
	TTL     time.Duration
	Now     func() time.Time
	Metrics *metrics.Metrics
	Logger  log.FieldLogger
}

// Service runs invitation transitions and queries. All writes go through the
// mutation gate under the identity of the invitation's resource.
type Service struct {
	docs Reader
	gate *gateway.Gate
	eval *rbac.Evaluator
	opts Options
}

func NewService(docs Reader, gate *gateway.Gate, eval *rbac.Evaluator, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Service{docs: docs, gate: gate, eval: eval, opts: opts}
}

// CreateInput describes a new invitation.
type CreateInput struct {
	InviteeID    string
	ResourceType model.ResourceType
	ResourceID   string
	RoleID       string
	Message      string
}

// Create invites a user to a role on a resource. The operator needs
// INVITE_USERS and must be able to assign the role.
func (s *Service) Create(ctx context.Context, operatorID string, in CreateInput) (inv *model.Invitation, err error) {
	defer func() {
		ev := audit.InvitationEvent{Action: "create", OperatorID: operatorID, ResourceID: in.ResourceID}
		if inv != nil {
			ev.InvitationID = inv.ID
			ev.Status = string(inv.Status)
		}
		s.record(ctx, ev, err)
	}()

	if model.SameID(in.InviteeID, operatorID) {
		return nil, errs.Validation("cannot invite yourself")
	}

	op, err := s.eval.ResolveOperator(ctx, in.ResourceType, in.ResourceID, operatorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Require(ctx, op, model.PermissionInviteUsers); err != nil {
		return nil, err
	}
	if _, err := s.eval.ResolveTargetRole(ctx, in.ResourceType, in.ResourceID, in.RoleID); err != nil {
		return nil, err
	}
	ok, err := s.eval.IsAssignable(ctx, op, in.RoleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Authorization("role %q cannot be assigned by this operator", in.RoleID)
	}

	existing, err := s.docs.UserRole(ctx, in.InviteeID, in.ResourceType, in.ResourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflict("user already holds a role on %s %q", in.ResourceType, in.ResourceID)
	}

	now := s.opts.Now()
	pending, err := s.docs.Invitations(ctx, graph.InvitationQuery{
		ParticipantID: in.InviteeID,
		As:            graph.AsInvitee,
		Status:        model.InvitationPending,
		ResourceID:    in.ResourceID,
	})
	if err != nil {
		return nil, err
	}
	for i := range pending {
		if pending[i].IsLive(now) {
			return nil, errs.Conflict("user already has a pending invitation for %s %q", in.ResourceType, in.ResourceID)
		}
	}

	draft := model.Invitation{
		ID:         uuid.NewString(),
		InviterID:  op.ID,
		InviteeID:  model.NormalizeID(in.InviteeID),
		Resource:   in.ResourceType,
		ResourceID: in.ResourceID,
		RoleID:     in.RoleID,
		Status:     model.InvitationPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.TTL),
		UpdatedAt:  now,
		LastSentAt: now,
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		draft.Message = &msg
	}

	return gateway.Do(ctx, s.gate, in.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.Invitation, error) {
		created, err := graph.CreateInvitation(ctx, m, draft)
		if err != nil {
			return nil, err
		}
		if created == nil {
			return &draft, nil
		}
		return created, nil
	})
}

// Cancel withdraws a pending invitation. Only the inviter may cancel.
func (s *Service) Cancel(ctx context.Context, operatorID, id string) (*model.Invitation, error) {
	return s.transition(ctx, operatorID, id, ActionCancel)
}

// Reject declines a pending invitation and marks it read. Only the invitee
// may reject.
func (s *Service) Reject(ctx context.Context, operatorID, id string) (*model.Invitation, error) {
	return s.transition(ctx, operatorID, id, ActionReject)
}

func (s *Service) transition(ctx context.Context, operatorID, id string, action Action) (*model.Invitation, error) {
	inv, err := s.Prepare(ctx, operatorID, id, action)
	if err != nil {
		return nil, err
	}
	return s.Complete(ctx, operatorID, inv, action)
}

// Prepare loads an invitation and runs the guards for action without
// writing anything.
func (s *Service) Prepare(ctx context.Context, operatorID, id string, action Action) (inv *model.Invitation, err error) {
	inv, err = s.docs.Invitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err = Guard(inv, action, operatorID, s.opts.Now()); err != nil {
		ev := audit.InvitationEvent{Action: string(action), OperatorID: operatorID, InvitationID: id}
		if inv != nil {
			ev.ResourceID = inv.ResourceID
			ev.Status = string(inv.Status)
		}
		s.record(ctx, ev, err)
		return nil, err
	}
	return inv, nil
}

// Complete applies action to inv through the gate. The invitation is read
// again under the resource identity and the guards rerun before the write,
// so a transition that raced ahead is reported as InvalidStatus.
func (s *Service) Complete(ctx context.Context, operatorID string, inv *model.Invitation, action Action) (updated *model.Invitation, err error) {
	defer func() {
		ev := audit.InvitationEvent{Action: string(action), OperatorID: operatorID, InvitationID: inv.ID, ResourceID: inv.ResourceID}
		if updated != nil {
			ev.Status = string(updated.Status)
		}
		s.record(ctx, ev, err)
	}()

	return gateway.Do(ctx, s.gate, inv.ResourceID, func(ctx context.Context, m graph.Mutator) (*model.Invitation, error) {
		current, err := graph.NewDocuments(m).Invitation(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		now := s.opts.Now()
		next, err := Guard(current, action, operatorID, now)
		if err != nil {
			return nil, err
		}

		patch := graph.InvitationPatch{Status: &next, UpdatedAt: now}
		if action == ActionAccept || action == ActionReject {
			read := true
			patch.IsRead = &read
		}
		return updateInvitation(ctx, m, current.ID, patch)
	})
}

// MarkRead flags one invitation as read. Only participants can see it; to
// anyone else it does not exist.
func (s *Service) MarkRead(ctx context.Context, operatorID, id string) (updated *model.Invitation, err error) {
	inv, err := s.visible(ctx, operatorID, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.record(ctx, audit.InvitationEvent{Action: "read", OperatorID: operatorID, InvitationID: id, ResourceID: inv.ResourceID}, err)
	}()
	if inv.IsRead {
		return inv, nil
	}
	return gateway.Do(ctx, s.gate, inv.ResourceID, markRead(inv.ID, s.opts.Now()))
}

// MarkAllRead flags the given invitations as read, or every unread
// invitation the operator received when ids is empty. It returns the number
// of invitations written.
func (s *Service) MarkAllRead(ctx context.Context, operatorID string, ids []string) (int, error) {
	var targets []*model.Invitation
	if len(ids) == 0 {
		all, err := s.docs.Invitations(ctx, graph.InvitationQuery{ParticipantID: operatorID, As: graph.AsInvitee})
		if err != nil {
			return 0, err
		}
		for i := range all {
			targets = append(targets, &all[i])
		}
	} else {
		seen := map[string]bool{}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			inv, err := s.visible(ctx, operatorID, id)
			if err != nil {
				return 0, err
			}
			targets = append(targets, inv)
		}
	}

	count := 0
	for _, inv := range targets {
		if inv.IsRead {
			continue
		}
		_, err := gateway.Do(ctx, s.gate, inv.ResourceID, markRead(inv.ID, s.opts.Now()))
		s.record(ctx, audit.InvitationEvent{Action: "read", OperatorID: operatorID, InvitationID: inv.ID, ResourceID: inv.ResourceID}, err)
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Service) visible(ctx context.Context, operatorID, id string) (*model.Invitation, error) {
	inv, err := s.docs.Invitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || !inv.IsParticipant(operatorID) {
		return nil, errs.NotFound("invitation not found")
	}
	return inv, nil
}

func markRead(id string, now time.Time) func(context.Context, graph.Mutator) (*model.Invitation, error) {
	return func(ctx context.Context, m graph.Mutator) (*model.Invitation, error) {
		read := true
		return updateInvitation(ctx, m, id, graph.InvitationPatch{IsRead: &read, UpdatedAt: now})
	}
}

func updateInvitation(ctx context.Context, m graph.Mutator, id string, patch graph.InvitationPatch) (*model.Invitation, error) {
	inv, err := graph.UpdateInvitation(ctx, m, id, patch)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errs.NotFound("invitation not found")
	}
	return inv, nil
}

// Filter narrows List.
type Filter struct {
	Status     model.InvitationStatus
	ResourceID string
}

// View is an invitation with its derived expiry.
type View struct {
	model.Invitation
	Expired bool `json:"expired"`
}

// List returns every invitation the operator received, newest first.
func (s *Service) List(ctx context.Context, operatorID string, f Filter) ([]View, error) {
	all, err := s.docs.Invitations(ctx, graph.InvitationQuery{
		ParticipantID: operatorID,
		As:            graph.AsInvitee,
		Status:        f.Status,
		ResourceID:    f.ResourceID,
	})
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	out := make([]View, 0, len(all))
	for i := range all {
		out = append(out, View{Invitation: all[i], Expired: all[i].IsExpired(now)})
	}
	return out, nil
}

// Pending returns the operator's received invitations that can still be
// acted on.
func (s *Service) Pending(ctx context.Context, operatorID string) ([]model.Invitation, error) {
	all, err := s.docs.Invitations(ctx, graph.InvitationQuery{
		ParticipantID: operatorID,
		As:            graph.AsInvitee,
		Status:        model.InvitationPending,
	})
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	out := make([]model.Invitation, 0, len(all))
	for _, inv := range all {
		if inv.IsLive(now) {
			out = append(out, inv)
		}
	}
	return out, nil
}

// UnreadCount counts pending, unexpired invitations the operator has not read.
func (s *Service) UnreadCount(ctx context.Context, operatorID string) (int, error) {
	pending, err := s.Pending(ctx, operatorID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, inv := range pending {
		if !inv.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Service) record(ctx context.Context, ev audit.InvitationEvent, err error) {
	ev.ClientIP = identity.ClientIPFrom(ctx)
	ev.Success = err == nil
	if err != nil {
		ev.ErrorMessage = err.Error()
		s.opts.Logger.WithFields(log.Fields{
			"action":     ev.Action,
			"invitation": ev.InvitationID,
			"operator":   ev.OperatorID,
		}).WithError(err).Info("invitation action failed")
	}
	s.opts.Metrics.InvitationTransitionsTotal.WithLabelValues(ev.Action, metrics.Outcome(err)).Inc()
	audit.Log(ev)
}
