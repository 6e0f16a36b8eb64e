package domain

import "time"

// Event types published to the events topic.
const (
	EventCardExported        = "card.exported"
	EventProfileCreated      = "profile.created"
	EventProfileStatusChange = "profile.status_changed"
	EventProfileRoleChange   = "profile.role_changed"
	EventProfileDeleted      = "profile.deleted"
)

// Event is a domain notification for downstream consumers.
type Event struct {
	Type       string         `json:"type"`
	SubjectID  string         `json:"subjectId"`
	ActorID    string         `json:"actorId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
