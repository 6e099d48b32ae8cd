package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// CalendarHandler implements the schedule_event step.
type CalendarHandler struct {
	calendar Calendar
}

func NewCalendarHandler(calendar Calendar) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

func (h *CalendarHandler) Type() schema.StepType { return schema.StepScheduleEvent }

func (h *CalendarHandler) Validate(config map[string]any) error {
	if stringParam(config, "title", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "schedule_event: missing required config 'title'")
	}
	if timeParam(config, "start").IsZero() {
		return schema.NewError(schema.ErrCodeValidation, "schedule_event: missing or invalid config 'start' (RFC 3339)")
	}
	return nil
}

func (h *CalendarHandler) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := h.Validate(input.Config); err != nil {
		return nil, err
	}

	start := timeParam(input.Config, "start")
	end := timeParam(input.Config, "end")
	if end.IsZero() {
		// Duration-based events default to 30 minutes.
		end = start.Add(durationParam(input.Config, "duration", 30*time.Minute))
	}
	if !end.After(start) {
		return nil, schema.NewError(schema.ErrCodeValidation, "schedule_event: 'end' must be after 'start'")
	}

	req := EventRequest{
		Title:     stringParam(input.Config, "title", ""),
		Start:     start,
		End:       end,
		Attendees: stringSliceParam(input.Config, "attendees"),
		Location:  stringParam(input.Config, "location", ""),
	}

	eventID, err := h.calendar.ScheduleEvent(ctx, req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "schedule_event: %s", err.Error()).WithCause(err)
	}

	data, err := json.Marshal(map[string]any{
		"event_id": eventID,
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
	})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "schedule_event: marshal output").WithCause(err)
	}
	return &Output{Data: data}, nil
}
