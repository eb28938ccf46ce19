package domain

import "time"

// Event types emitted by the auth core.
const (
	EventIdentityRegistered  = "identity.registered"
	EventIdentityProvisioned = "identity.provisioned"
	EventSessionCreated      = "session.created"
	EventSessionRotated      = "session.rotated"
	EventSessionRevoked      = "session.revoked"
	EventPresenceOnline      = "presence.online"
	EventPresenceOffline     = "presence.offline"
)

// Event is an auth lifecycle event. Metadata must not carry credentials or token values.
type Event struct {
	Type      string            `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewEvent returns an Event stamped with the current UTC time.
func NewEvent(eventType, source, userID, sessionID string) *Event {
	return &Event{
		Type:      eventType,
		UserID:    userID,
		SessionID: sessionID,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}
