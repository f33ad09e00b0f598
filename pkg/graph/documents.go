package graph

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Documents reads typed documents through an Executor.
type Documents struct {
	exec Executor
}

func NewDocuments(exec Executor) *Documents {
	return &Documents{exec: exec}
}

// Resource returns nil when the resource does not exist.
func (d *Documents) Resource(ctx context.Context, resourceType model.ResourceType, resourceID string) (*model.Resource, error) {
	var out struct {
		Resource *model.Resource `json:"resource"`
	}
	err := d.exec.Execute(ctx, NewRequest(OpGetResource, map[string]interface{}{
		"type": resourceType,
		"id":   resourceID,
	}), &out)
	return out.Resource, err
}

// UserRole returns nil when the user holds no role on the resource.
func (d *Documents) UserRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (*model.UserRole, error) {
	var out struct {
		UserRole *model.UserRole `json:"userRole"`
	}
	err := d.exec.Execute(ctx, NewRequest(OpGetUserRole, map[string]interface{}{
		"userId":       model.NormalizeID(userID),
		"resourceType": resourceType,
		"resourceId":   resourceID,
	}), &out)
	return out.UserRole, err
}

// Invitation returns nil when no invitation has the id.
func (d *Documents) Invitation(ctx context.Context, id string) (*model.Invitation, error) {
	var out struct {
		Invitation *model.Invitation `json:"invitation"`
	}
	err := d.exec.Execute(ctx, NewRequest(OpGetInvitation, map[string]interface{}{"id": id}), &out)
	return out.Invitation, err
}

// Participant roles for invitation queries.
const (
	AsInvitee = "invitee"
	AsInviter = "inviter"
)

// InvitationQuery filters ListInvitations. Empty fields do not filter.
type InvitationQuery struct {
	ParticipantID string
	As            string
	Status        model.InvitationStatus
	ResourceID    string
}

func (d *Documents) Invitations(ctx context.Context, q InvitationQuery) ([]model.Invitation, error) {
	vars := map[string]interface{}{"participantId": model.NormalizeID(q.ParticipantID)}
	if q.As != "" {
		vars["role"] = q.As
	}
	if q.Status != "" {
		vars["status"] = q.Status
	}
	if q.ResourceID != "" {
		vars["resourceId"] = q.ResourceID
	}

	var out struct {
		Invitations []model.Invitation `json:"invitations"`
	}
	if err := d.exec.Execute(ctx, NewRequest(OpListInvitations, vars), &out); err != nil {
		return nil, err
	}
	if out.Invitations == nil {
		out.Invitations = []model.Invitation{}
	}
	return out.Invitations, nil
}

// CreateUserRole writes a new user role under m's identity.
func CreateUserRole(ctx context.Context, m Mutator, ur model.UserRole) (*model.UserRole, error) {
	var out struct {
		UserRole *model.UserRole `json:"createUserRole"`
	}
	err := m.Execute(ctx, NewRequest(OpCreateUserRole, map[string]interface{}{"input": ur}), &out)
	return out.UserRole, err
}

func UpdateUserRole(ctx context.Context, m Mutator, id, roleID string, at time.Time) (*model.UserRole, error) {
	var out struct {
		UserRole *model.UserRole `json:"updateUserRole"`
	}
	err := m.Execute(ctx, NewRequest(OpUpdateUserRole, map[string]interface{}{
		"id":        id,
		"roleId":    roleID,
		"updatedAt": at,
	}), &out)
	return out.UserRole, err
}

func DeleteUserRole(ctx context.Context, m Mutator, id string) error {
	return m.Execute(ctx, NewRequest(OpDeleteUserRole, map[string]interface{}{"id": id}), nil)
}

func CreateInvitation(ctx context.Context, m Mutator, inv model.Invitation) (*model.Invitation, error) {
	var out struct {
		Invitation *model.Invitation `json:"createInvitation"`
	}
	err := m.Execute(ctx, NewRequest(OpCreateInvitation, map[string]interface{}{"input": inv}), &out)
	return out.Invitation, err
}

// InvitationPatch is a partial invitation update. Nil fields are unchanged.
type InvitationPatch struct {
	Status    *model.InvitationStatus `json:"status,omitempty"`
	IsRead    *bool                   `json:"isRead,omitempty"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func UpdateInvitation(ctx context.Context, m Mutator, id string, patch InvitationPatch) (*model.Invitation, error) {
	var out struct {
		Invitation *model.Invitation `json:"updateInvitation"`
	}
	err := m.Execute(ctx, NewRequest(OpUpdateInvitation, map[string]interface{}{
		"id":    id,
		"patch": patch,
	}), &out)
	return out.Invitation, err
}
