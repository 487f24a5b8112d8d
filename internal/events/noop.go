package events

import (
	"context"

	"go.uber.org/zap"
)

// Noop drops every event. It is used when no broker is configured.
type Noop struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) *Noop {
	return &Noop{log: log.Named("events.noop")}
}

func (n *Noop) Publish(_ context.Context, event Event) error {
	n.log.Debug("event dropped", zap.String("type", event.Type), zap.String("event_id", event.ID))
	return nil
}
