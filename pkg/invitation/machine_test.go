package invitation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

var (
	statuses = []model.InvitationStatus{
		model.InvitationPending, model.InvitationAccepted, model.InvitationRejected,
		model.InvitationCancelled, model.InvitationInvalid,
	}
	actions = []Action{ActionAccept, ActionReject, ActionCancel}
)

func TestNextIsExhaustive(t *testing.T) {
	want := map[Action]model.InvitationStatus{
		ActionAccept: model.InvitationAccepted,
		ActionReject: model.InvitationRejected,
		ActionCancel: model.InvitationCancelled,
	}
	for _, from := range statuses {
		for _, a := range actions {
			to, err := Next(from, a)
			if from == model.InvitationPending {
				require.NoError(t, err)
				assert.Equal(t, want[a], to)
				continue
			}
			assert.ErrorIs(t, err, errs.ErrInvalidStatus, "%s from %s", a, from)
		}
	}
}

func TestNoTransitionProducesInvalid(t *testing.T) {
	for _, to := range transitions {
		assert.NotEqual(t, model.InvitationInvalid, to)
	}
}

func TestGuardOrder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	base := model.Invitation{
		ID:        "inv1",
		InviterID: "did:key:zInviter",
		InviteeID: "0xInvitee",
		Status:    model.InvitationPending,
		ExpiresAt: now.Add(time.Hour),
	}
	with := func(f func(*model.Invitation)) *model.Invitation {
		inv := base
		f(&inv)
		return &inv
	}

	tests := []struct {
		name   string
		inv    *model.Invitation
		action Action
		actor  string
		want   error
	}{
		{"missing", nil, ActionReject, "0xinvitee", errs.ErrNotFound},
		{"expired beats status", with(func(i *model.Invitation) { i.ExpiresAt = now.Add(-time.Second); i.Status = model.InvitationAccepted }), ActionReject, "0xinvitee", errs.ErrExpired},
		{"expires exactly now", with(func(i *model.Invitation) { i.ExpiresAt = now }), ActionAccept, "0xinvitee", errs.ErrExpired},
		{"expired beats actor", with(func(i *model.Invitation) { i.ExpiresAt = now.Add(-time.Hour) }), ActionCancel, "someone", errs.ErrExpired},
		{"status beats actor", with(func(i *model.Invitation) { i.Status = model.InvitationAccepted }), ActionReject, "someone", errs.ErrInvalidStatus},
		{"reject after accept", with(func(i *model.Invitation) { i.Status = model.InvitationAccepted }), ActionReject, "0xinvitee", errs.ErrInvalidStatus},
		{"non-inviter cancel", base2(&base), ActionCancel, "0xinvitee", errs.ErrAuthorization},
		{"inviter cannot accept", base2(&base), ActionAccept, "did:key:zInviter", errs.ErrAuthorization},
		{"did comparison is case sensitive", base2(&base), ActionCancel, "did:key:zinviter", errs.ErrAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Guard(tt.inv, tt.action, tt.actor, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("allowed", func(t *testing.T) {
		next, err := Guard(&base, ActionReject, " 0xINVITEE ", now)
		require.NoError(t, err)
		assert.Equal(t, model.InvitationRejected, next)

		next, err = Guard(&base, ActionCancel, "did:key:zInviter", now)
		require.NoError(t, err)
		assert.Equal(t, model.InvitationCancelled, next)
	})
}

func base2(inv *model.Invitation) *model.Invitation {
	cp := *inv
	return &cp
}
