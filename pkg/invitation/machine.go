package invitation

import (
	"time"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Action is an invitation transition request.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionCancel Action = "cancel"
)

type transitionKey struct {
	from   model.InvitationStatus
	action Action
}

// transitions is the whole state machine. Pairs not listed are rejected.
var transitions = map[transitionKey]model.InvitationStatus{
	{model.InvitationPending, ActionAccept}: model.InvitationAccepted,
	{model.InvitationPending, ActionReject}: model.InvitationRejected,
	{model.InvitationPending, ActionCancel}: model.InvitationCancelled,
}

// Next returns the status reached by applying action in from.
func Next(from model.InvitationStatus, action Action) (model.InvitationStatus, error) {
	to, ok := transitions[transitionKey{from, action}]
	if !ok {
		return "", errs.InvalidStatus("cannot %s an invitation that is %s", action, from)
	}
	return to, nil
}

// Guard runs the transition guards in order: existence, expiry, status and
// actor. It returns the status the transition would produce.
func Guard(inv *model.Invitation, action Action, actorID string, now time.Time) (model.InvitationStatus, error) {
	if inv == nil {
		return "", errs.NotFound("invitation not found")
	}
	if inv.IsExpired(now) {
		return "", errs.Expired("invitation %s expired at %s", inv.ID, inv.ExpiresAt.UTC().Format(time.RFC3339))
	}
	next, err := Next(inv.Status, action)
	if err != nil {
		return "", err
	}

	switch action {
	case ActionCancel:
		if !model.SameID(inv.InviterID, actorID) {
			return "", errs.Authorization("only the inviter can cancel an invitation")
		}
	default:
		if !model.SameID(inv.InviteeID, actorID) {
			return "", errs.Authorization("only the invitee can %s an invitation", action)
		}
	}
	return next, nil
}
