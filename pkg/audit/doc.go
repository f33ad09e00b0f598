// Package audit writes RFC5424 audit lines for membership changes,
// invitation transitions and credential acquisitions.
//
// Lines go to stdout through DefaultLogger. When AUDIT_DATABASE_URL is set
// they are also persisted to the messages table. MEMBERSHIP_AUDIT_ENABLED=false
// turns auditing off.
//
// # Usage
//
//	audit.Log(audit.MembershipEvent{
//	    Operation:  "add",
//	    OperatorID: operatorID,
//	    UserID:     userID,
//	    ResourceID: resourceID,
//	    Success:    true,
//	})
package audit
