package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewEventEnvelope(t *testing.T) {
	at := time.Date(2024, 2, 11, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := New(TypeNotificationCreated, "1", at, map[string]any{"type": "late_payment"})

	assert.Len(t, ev.ID, 26)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"notification.created"`)
	assert.Contains(t, string(raw), `"occurred_at":"2024-02-11T08:00:00Z"`)
}

func TestNewWithIDKeepsCallerID(t *testing.T) {
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	first := NewWithID("reminder:7:2024-03:2024-03-15", TypeReminderDue, "1", at, nil)
	again := NewWithID("reminder:7:2024-03:2024-03-15", TypeReminderDue, "1", at.Add(time.Hour), nil)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, TypeReminderDue, again.Type)
}

func TestNoopPublisherAcceptsEverything(t *testing.T) {
	pub := NewNoop(zap.NewNop())
	assert.NoError(t, pub.Publish(context.Background(), New(TypeReminderDue, "1", time.Now(), nil)))
}
