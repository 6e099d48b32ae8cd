package handlers

import (
	"log/slog"
	"time"
)

// Connectors bundles the external-system clients handlers dispatch to.
// Zero-value fields fall back to the in-memory implementations.
type Connectors struct {
	Notifier    Notifier
	TaskTracker TaskTracker
	Messenger   Messenger
	Mailer      Mailer
	Calendar    Calendar
}

// BuiltinConfig tunes the connector-independent handlers.
type BuiltinConfig struct {
	Webhook        WebhookConfig
	MaxInlineDelay time.Duration
}

// RegisterBuiltins registers one handler per step type on the registry.
func RegisterBuiltins(reg *Registry, conns Connectors, cfg BuiltinConfig, logger *slog.Logger) error {
	if conns.Notifier == nil {
		conns.Notifier = NewMemoryNotifier(logger)
	}
	if conns.TaskTracker == nil {
		conns.TaskTracker = NewMemoryTaskTracker()
	}
	if conns.Messenger == nil {
		conns.Messenger = NewMemoryMessenger()
	}
	if conns.Mailer == nil {
		conns.Mailer = NewMemoryMailer()
	}
	if conns.Calendar == nil {
		conns.Calendar = NewMemoryCalendar()
	}

	all := []Handler{
		NewNotificationHandler(conns.Notifier),
		NewCreateTaskHandler(conns.TaskTracker),
		NewUpdateTaskHandler(conns.TaskTracker),
		NewMessageHandler(conns.Messenger),
		NewEmailHandler(conns.Mailer),
		NewCalendarHandler(conns.Calendar),
		NewWebhookHandler(cfg.Webhook),
		NewDelayHandler(cfg.MaxInlineDelay),
		NewTransformHandler(),
		NewComputeHandler(),
	}
	for _, h := range all {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
