package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connector interfaces for the external systems steps act on. Real
// deployments plug in API clients; the in-memory implementations below are
// the default wiring and the test doubles.

// Notifier delivers a notification to a channel or user.
type Notifier interface {
	SendNotification(ctx context.Context, recipient, message string) (ack string, err error)
}

// TaskRequest describes a task to create in the tracker.
type TaskRequest struct {
	Name        string
	Project     string
	Description string
	Assignee    string
	DueDate     *time.Time
}

// TaskTracker creates and updates tasks in an external tracker.
type TaskTracker interface {
	CreateTask(ctx context.Context, req TaskRequest) (taskID string, err error)
	UpdateTask(ctx context.Context, taskID string, fields map[string]any) error
}

// Messenger sends a chat message.
type Messenger interface {
	SendMessage(ctx context.Context, to, subject, body string) (messageID string, err error)
}

// EmailRequest describes an outbound email.
type EmailRequest struct {
	To      []string
	Subject string
	Body    string
	CC      []string
}

// Mailer sends email.
type Mailer interface {
	SendEmail(ctx context.Context, req EmailRequest) (messageID string, err error)
}

// EventRequest describes a calendar event to schedule.
type EventRequest struct {
	Title     string
	Start     time.Time
	End       time.Time
	Attendees []string
	Location  string
}

// Calendar schedules events.
type Calendar interface {
	ScheduleEvent(ctx context.Context, req EventRequest) (eventID string, err error)
}

// --- In-memory implementations ---

// MemoryNotifier records notifications and logs them.
type MemoryNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger
	Sent   []MemoryNotification
}

type MemoryNotification struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

func NewMemoryNotifier(logger *slog.Logger) *MemoryNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryNotifier{logger: logger}
}

func (n *MemoryNotifier) SendNotification(ctx context.Context, recipient, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n.mu.Lock()
	n.Sent = append(n.Sent, MemoryNotification{Recipient: recipient, Message: message, SentAt: time.Now().UTC()})
	n.mu.Unlock()
	n.logger.InfoContext(ctx, "notification sent", "recipient", recipient)
	return uuid.NewString(), nil
}

// MemoryTaskTracker stores tasks in a map.
type MemoryTaskTracker struct {
	mu    sync.Mutex
	Tasks map[string]*MemoryTask
}

type MemoryTask struct {
	ID          string
	Name        string
	Project     string
	Description string
	Assignee    string
	DueDate     *time.Time
	Fields      map[string]any
	CreatedAt   time.Time
}

func NewMemoryTaskTracker() *MemoryTaskTracker {
	return &MemoryTaskTracker{Tasks: make(map[string]*MemoryTask)}
}

func (t *MemoryTaskTracker) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := uuid.NewString()
	t.Tasks[id] = &MemoryTask{
		ID:          id,
		Name:        req.Name,
		Project:     req.Project,
		Description: req.Description,
		Assignee:    req.Assignee,
		DueDate:     req.DueDate,
		Fields:      make(map[string]any),
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (t *MemoryTaskTracker) UpdateTask(ctx context.Context, taskID string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.Tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}
	for k, v := range fields {
		task.Fields[k] = v
	}
	return nil
}

// MemoryMessenger records chat messages.
type MemoryMessenger struct {
	mu   sync.Mutex
	Sent []MemoryMessage
}

type MemoryMessage struct {
	ID      string
	To      string
	Subject string
	Body    string
}

func NewMemoryMessenger() *MemoryMessenger { return &MemoryMessenger{} }

func (m *MemoryMessenger) SendMessage(ctx context.Context, to, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.Sent = append(m.Sent, MemoryMessage{ID: id, To: to, Subject: subject, Body: body})
	return id, nil
}

// MemoryMailer records outbound email.
type MemoryMailer struct {
	mu   sync.Mutex
	Sent []EmailRequest
}

func NewMemoryMailer() *MemoryMailer { return &MemoryMailer{} }

func (m *MemoryMailer) SendEmail(ctx context.Context, req EmailRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, req)
	return uuid.NewString(), nil
}

// MemoryCalendar records scheduled events.
type MemoryCalendar struct {
	mu     sync.Mutex
	Events map[string]EventRequest
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{Events: make(map[string]EventRequest)}
}

func (c *MemoryCalendar) ScheduleEvent(ctx context.Context, req EventRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.Events[id] = req
	return id, nil
}
