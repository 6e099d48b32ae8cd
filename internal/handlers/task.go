package handlers

import (
	"context"
	"encoding/json"

	"github.com/relayworks/relay/pkg/schema"
)

// CreateTaskHandler implements the create_task step.
type CreateTaskHandler struct {
	tracker TaskTracker
}

func NewCreateTaskHandler(tracker TaskTracker) *CreateTaskHandler {
	return &CreateTaskHandler{tracker: tracker}
}

func (h *CreateTaskHandler) Type() schema.StepType { return schema.StepCreateTask }

func (h *CreateTaskHandler) Validate(config map[string]any) error {
	if stringParam(config, "name", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "create_task: missing required config 'name'")
	}
	return nil
}

func (h *CreateTaskHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}

	req := TaskRequest{
		Name:        stringParam(input.Config, "name", ""),
		Project:     stringParam(input.Config, "project", ""),
		Description: stringParam(input.Config, "description", ""),
		Assignee:    stringParam(input.Config, "assignee", ""),
	}
	if due := timeParam(input.Config, "due_date"); !due.IsZero() {
		req.DueDate = &due
	}

	taskID, err := h.tracker.CreateTask(ctx, req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "create_task: %s", err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{"task_id": taskID})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "create_task: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}

// UpdateTaskHandler implements the update_task step.
type UpdateTaskHandler struct {
	tracker TaskTracker
}

func NewUpdateTaskHandler(tracker TaskTracker) *UpdateTaskHandler {
	return &UpdateTaskHandler{tracker: tracker}
}

func (h *UpdateTaskHandler) Type() schema.StepType { return schema.StepUpdateTask }

func (h *UpdateTaskHandler) Validate(config map[string]any) error {
	if stringParam(config, "task_id", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "update_task: missing required config 'task_id'")
	}
	return nil
}

func (h *UpdateTaskHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}

	taskID := stringParam(input.Config, "task_id", "")
	fields, _ := input.Config["fields"].(map[string]any)
	if fields == nil {
		fields = make(map[string]any)
		// Treat every non-reserved config key as a field update.
		for k, v := range input.Config {
			if k != "task_id" {
				fields[k] = v
			}
		}
	}

	if err := h.tracker.UpdateTask(ctx, taskID, fields); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "update_task: %s", err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{"task_id": taskID, "updated": true})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "update_task: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
