package audit

import "fmt"

func resultOf(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func withError(msg string, errMsg string) string {
	if errMsg != "" {
		return msg + ": " + errMsg
	}
	return msg
}

// MembershipEvent records a role assignment change on a resource.
type MembershipEvent struct {
	Operation    string // add, remove, update, join, follow, unfollow, accept
	OperatorID   string
	UserID       string
	ResourceType string
	ResourceID   string
	RoleID       string
	ClientIP     string
	Success      bool
	ErrorMessage string
}

func (e MembershipEvent) MessageID() string {
	return "membership"
}

func (e MembershipEvent) Message() string {
	target := fmt.Sprintf("%s on %s %s", e.UserID, e.ResourceType, e.ResourceID)
	if e.Success {
		return fmt.Sprintf("%s performed %s for %s", e.OperatorID, e.Operation, target)
	}
	return withError(fmt.Sprintf("%s failed to %s for %s", e.OperatorID, e.Operation, target), e.ErrorMessage)
}

func (e MembershipEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityWarning
}

func (e MembershipEvent) Facility() int {
	return FacilityAuthPriv
}

func (e MembershipEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.OperatorID,
		},
		SDIDSubject: {
			"user":          e.UserID,
			"resource_type": e.ResourceType,
			"resource":      e.ResourceID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    resultOf(e.Success),
		},
	}
	if e.RoleID != "" {
		sd[SDIDSubject]["role"] = e.RoleID
	}
	return sd
}

func (e MembershipEvent) Subject() Subject {
	return Subject{Operation: e.Operation, OperatorID: e.OperatorID, ResourceID: e.ResourceID, Success: e.Success}
}

// InvitationEvent records an invitation lifecycle action.
type InvitationEvent struct {
	Action       string // create, accept, reject, cancel, read
	OperatorID   string
	InvitationID string
	ResourceID   string
	Status       string
	ClientIP     string
	Success      bool
	ErrorMessage string
}

func (e InvitationEvent) MessageID() string {
	return "invitation"
}

func (e InvitationEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s %s invitation %s", e.OperatorID, pastTense(e.Action), e.InvitationID)
	}
	return withError(fmt.Sprintf("%s failed to %s invitation %s", e.OperatorID, e.Action, e.InvitationID), e.ErrorMessage)
}

func pastTense(action string) string {
	switch action {
	case "create":
		return "created"
	case "read":
		return "read"
	case "cancel":
		return "cancelled"
	}
	return action + "ed"
}

func (e InvitationEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e InvitationEvent) Facility() int {
	return FacilityAuthPriv
}

func (e InvitationEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.OperatorID,
		},
		SDIDSubject: {
			"invitation": e.InvitationID,
			"resource":   e.ResourceID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Action,
			"result":    resultOf(e.Success),
		},
	}
	if e.Status != "" {
		sd[SDIDSubject]["status"] = e.Status
	}
	return sd
}

func (e InvitationEvent) Subject() Subject {
	return Subject{Operation: e.Action, OperatorID: e.OperatorID, ResourceID: e.ResourceID, Success: e.Success}
}

// CredentialEvent records a resource signing identity acquisition.
type CredentialEvent struct {
	ResourceID   string
	DID          string
	Mode         string
	Success      bool
	ErrorMessage string
}

func (e CredentialEvent) MessageID() string {
	return "credential"
}

func (e CredentialEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("acquired signing identity %s for resource %s", e.DID, e.ResourceID)
	}
	return withError(fmt.Sprintf("failed to acquire signing identity for resource %s", e.ResourceID), e.ErrorMessage)
}

func (e CredentialEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityError
}

func (e CredentialEvent) Facility() int {
	return FacilityAuth
}

func (e CredentialEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDSubject: {
			"resource": e.ResourceID,
		},
		SDIDCredential: {
			"mode": e.Mode,
		},
		SDIDAction: {
			"operation": "acquire",
			"result":    resultOf(e.Success),
		},
	}
	if e.DID != "" {
		sd[SDIDCredential]["did"] = e.DID
	}
	return sd
}

func (e CredentialEvent) Subject() Subject {
	return Subject{Operation: "acquire", ResourceID: e.ResourceID, DID: e.DID, Success: e.Success}
}
