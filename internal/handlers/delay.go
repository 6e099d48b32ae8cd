package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// DelayHandler implements the delay step: a pure scheduling primitive that
// pauses the walk for a fixed duration. No external call.
type DelayHandler struct {
	// maxDelay bounds a single in-step pause. Longer waits belong to the
	// queue's delayed re-enqueue, not a sleeping goroutine.
	maxDelay time.Duration
}

const defaultMaxInlineDelay = 5 * time.Minute

func NewDelayHandler(maxDelay time.Duration) *DelayHandler {
	if maxDelay <= 0 {
		maxDelay = defaultMaxInlineDelay
	}
	return &DelayHandler{maxDelay: maxDelay}
}

func (h *DelayHandler) Type() schema.StepType { return schema.StepDelay }

func (h *DelayHandler) Validate(config map[string]any) error {
	d := durationParam(config, "duration", 0)
	if d <= 0 {
		return schema.NewError(schema.ErrCodeValidation, "delay: missing or invalid config 'duration'")
	}
	if d > h.maxDelay {
		return schema.NewErrorf(schema.ErrCodeValidation, "delay: duration %s exceeds the inline maximum %s", d, h.maxDelay)
	}
	return nil
}

func (h *DelayHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}
	d := durationParam(input.Config, "duration", 0)

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	data, err := json.Marshal(map[string]any{"delayed": d.String()})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "delay: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
