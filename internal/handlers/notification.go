package handlers

import (
	"context"
	"encoding/json"

	"github.com/relayworks/relay/pkg/schema"
)

// NotificationHandler implements the send_notification step: delivers a
// message to a channel or user through the Notifier connector.
type NotificationHandler struct {
	notifier Notifier
}

func NewNotificationHandler(notifier Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

func (h *NotificationHandler) Type() schema.StepType { return schema.StepSendNotification }

func (h *NotificationHandler) Validate(config map[string]any) error {
	if stringParam(config, "message", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "send_notification: missing required config 'message'")
	}
	return nil
}

func (h *NotificationHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}
	recipient := stringParam(input.Config, "recipient", "")
	if recipient == "" {
		recipient = stringParam(input.Config, "channel", "")
	}
	message := stringParam(input.Config, "message", "")

	ack, err := h.notifier.SendNotification(ctx, recipient, message)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "send_notification: %s", err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{"ack": ack, "recipient": recipient})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "send_notification: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
