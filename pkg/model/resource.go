package model

// ResourceType is the kind of community a role is scoped to.
type ResourceType string

const (
	ResourceSpace ResourceType = "space"
	ResourceEvent ResourceType = "event"
)

func (t ResourceType) Valid() bool {
	return t == ResourceSpace || t == ResourceEvent
}

// Resource is a space or event as stored in the document graph. It is read-only here.
type Resource struct {
	ID      string       `json:"id"`
	Type    ResourceType `json:"type"`
	OwnerID string       `json:"ownerId"`
	Gated   bool         `json:"gated"`
}
