package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventTokenRevoked   EventType = "token_revoked"
)

// Event represents a credential lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Email     string      `json:"email,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, userID, email string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Email:     email,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TokenPayload identifies a credential without exposing it.
type TokenPayload struct {
	TokenID string `json:"jti"`
	Kind    string `json:"kind"`
}

// LoginFailedPayload records why a login was refused. Reason is never returned to the client.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}
