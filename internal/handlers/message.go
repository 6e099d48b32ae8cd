package handlers

import (
	"context"
	"encoding/json"

	"github.com/relayworks/relay/pkg/schema"
)

// MessageHandler implements the send_message step: a chat message through
// the Messenger connector.
type MessageHandler struct {
	messenger Messenger
}

func NewMessageHandler(messenger Messenger) *MessageHandler {
	return &MessageHandler{messenger: messenger}
}

func (h *MessageHandler) Type() schema.StepType { return schema.StepSendMessage }

func (h *MessageHandler) Validate(config map[string]any) error {
	if stringParam(config, "to", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "send_message: missing required config 'to'")
	}
	if stringParam(config, "body", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "send_message: missing required config 'body'")
	}
	return nil
}

func (h *MessageHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}

	to := stringParam(input.Config, "to", "")
	subject := stringParam(input.Config, "subject", "")
	body := stringParam(input.Config, "body", "")

	messageID, err := h.messenger.SendMessage(ctx, to, subject, body)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "send_message: %s", err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{"message_id": messageID})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "send_message: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}

// EmailHandler implements the send_email step through the Mailer connector.
type EmailHandler struct {
	mailer Mailer
}

func NewEmailHandler(mailer Mailer) *EmailHandler {
	return &EmailHandler{mailer: mailer}
}

func (h *EmailHandler) Type() schema.StepType { return schema.StepSendEmail }

func (h *EmailHandler) Validate(config map[string]any) error {
	if len(stringSliceParam(config, "to")) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "send_email: missing required config 'to'")
	}
	return nil
}

func (h *EmailHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}

	req := EmailRequest{
		To:      stringSliceParam(input.Config, "to"),
		Subject: stringParam(input.Config, "subject", ""),
		Body:    stringParam(input.Config, "body", ""),
		CC:      stringSliceParam(input.Config, "cc"),
	}

	messageID, err := h.mailer.SendEmail(ctx, req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "send_email: %s", err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{"message_id": messageID})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "send_email: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
