package streaming

import (
	"context"
	"encoding/json"

	"github.com/relayworks/relay/internal/engine"
	"github.com/relayworks/relay/internal/store"
)

// LogTap wraps an event logger and mirrors every appended event onto a
// hub. Publish failures never block or fail the append.
type LogTap struct {
	next engine.EventLogger
	hub  EventHub
}

func NewLogTap(next engine.EventLogger, hub EventHub) *LogTap {
	return &LogTap{next: next, hub: hub}
}

func (t *LogTap) AppendEvent(ctx context.Context, event *store.Event) error {
	if err := t.next.AppendEvent(ctx, event); err != nil {
		return err
	}

	var payload any
	if len(event.Payload) > 0 {
		_ = json.Unmarshal(event.Payload, &payload)
	}
	_ = t.hub.Publish(ctx, StreamEvent{
		ExecutionID: event.ExecutionID,
		StepID:      event.StepID,
		Type:        event.Type,
		Sequence:    event.Sequence,
		Payload:     payload,
	})
	return nil
}

func (t *LogTap) GetEvents(ctx context.Context, executionID string, since int64) ([]*store.Event, error) {
	return t.next.GetEvents(ctx, executionID, since)
}

func (t *LogTap) ReplayEvents(ctx context.Context, executionID string) (map[string]*store.StepRecord, error) {
	return t.next.ReplayEvents(ctx, executionID)
}
