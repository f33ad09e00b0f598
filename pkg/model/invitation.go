package model

import "time"

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationRejected  InvitationStatus = "rejected"
	InvitationCancelled InvitationStatus = "cancelled"
	// InvitationInvalid marks a malformed record. No transition produces it.
	InvitationInvalid InvitationStatus = "invalid"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRejected, InvitationCancelled, InvitationInvalid:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// Invitation offers InviteeID the role RoleID on a resource.
type Invitation struct {
	ID         string           `json:"id"`
	InviterID  string           `json:"inviterId"`
	InviteeID  string           `json:"inviteeId"`
	Resource   ResourceType     `json:"resource"`
	ResourceID string           `json:"resourceId"`
	RoleID     string           `json:"roleId"`
	Status     InvitationStatus `json:"status"`
	Message    *string          `json:"message,omitempty"`
	IsRead     bool             `json:"isRead"`
	CreatedAt  time.Time        `json:"createdAt"`
	ExpiresAt  time.Time        `json:"expiresAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	LastSentAt time.Time        `json:"lastSentAt"`
}

// IsExpired reports whether the invitation can no longer be acted on at now.
// An invitation is live only while expiresAt is strictly in the future.
func (i *Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsLive reports whether the invitation can still be acted on at now: it is
// in a non-terminal status and not expired.
func (i *Invitation) IsLive(now time.Time) bool {
	return !i.Status.Terminal() && !i.IsExpired(now)
}

// IsParticipant reports whether id is the inviter or the invitee.
func (i *Invitation) IsParticipant(id string) bool {
	return SameID(i.InviterID, id) || SameID(i.InviteeID, id)
}
