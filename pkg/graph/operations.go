package graph

// Operation names understood by the graph store.
const (
	OpGetResource      = "GetResource"
	OpGetUserRole      = "GetUserRole"
	OpGetInvitation    = "GetInvitation"
	OpListInvitations  = "ListInvitations"
	OpCreateUserRole   = "CreateUserRole"
	OpUpdateUserRole   = "UpdateUserRole"
	OpDeleteUserRole   = "DeleteUserRole"
	OpCreateInvitation = "CreateInvitation"
	OpUpdateInvitation = "UpdateInvitation"
)

const userRoleFields = `id userId resourceId resourceType roleId createdAt updatedAt`

const invitationFields = `id inviterId inviteeId resource resourceId roleId status message isRead createdAt expiresAt updatedAt lastSentAt`

var queries = map[string]string{
	OpGetResource: `query GetResource($type: ResourceType!, $id: ID!) {
  resource(type: $type, id: $id) { id type ownerId gated }
}`,
	OpGetUserRole: `query GetUserRole($userId: ID!, $resourceType: ResourceType!, $resourceId: ID!) {
  userRole(userId: $userId, resourceType: $resourceType, resourceId: $resourceId) { ` + userRoleFields + ` }
}`,
	OpGetInvitation: `query GetInvitation($id: ID!) {
  invitation(id: $id) { ` + invitationFields + ` }
}`,
	OpListInvitations: `query ListInvitations($participantId: ID!, $role: ParticipantRole, $status: InvitationStatus, $resourceId: ID) {
  invitations(participantId: $participantId, role: $role, status: $status, resourceId: $resourceId) { ` + invitationFields + ` }
}`,
	OpCreateUserRole: `mutation CreateUserRole($input: UserRoleInput!) {
  createUserRole(input: $input) { ` + userRoleFields + ` }
}`,
	OpUpdateUserRole: `mutation UpdateUserRole($id: ID!, $roleId: ID!, $updatedAt: DateTime!) {
  updateUserRole(id: $id, roleId: $roleId, updatedAt: $updatedAt) { ` + userRoleFields + ` }
}`,
	OpDeleteUserRole: `mutation DeleteUserRole($id: ID!) {
  deleteUserRole(id: $id) { id }
}`,
	OpCreateInvitation: `mutation CreateInvitation($input: InvitationInput!) {
  createInvitation(input: $input) { ` + invitationFields + ` }
}`,
	OpUpdateInvitation: `mutation UpdateInvitation($id: ID!, $patch: InvitationPatch!) {
  updateInvitation(id: $id, patch: $patch) { ` + invitationFields + ` }
}`,
}

// NewRequest builds the request for a named operation.
func NewRequest(op string, vars map[string]interface{}) Request {
	return Request{Query: queries[op], Variables: vars, OperationName: op}
}

// IsMutation reports whether op writes to the graph store.
func IsMutation(op string) bool {
	switch op {
	case OpCreateUserRole, OpUpdateUserRole, OpDeleteUserRole, OpCreateInvitation, OpUpdateInvitation:
		return true
	}
	return false
}
