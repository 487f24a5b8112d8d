// Package events publishes domain events for out-of-process observers such
// as the push layer and the email dispatcher.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

//go:generate mockgen -source=events.go -destination=./mock/publisher.go -package=mock

const (
	TypeNotificationCreated = "notification.created"
	TypeReminderDue         = "reminder.due"
)

// Event is the JSON envelope published to the broker. Type doubles as the
// routing key.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrgID      string    `json:"org_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(eventType, orgID string, at time.Time, payload any) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		OrgID:      orgID,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
}

// NewWithID is New with a caller-derived ID. The ID must be the same every
// time the same fact is published.
func NewWithID(id, eventType, orgID string, at time.Time, payload any) Event {
	event := New(eventType, orgID, at, payload)
	event.ID = id
	return event
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
