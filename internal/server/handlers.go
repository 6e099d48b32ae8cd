package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relayworks/relay/internal/catalog"
	"github.com/relayworks/relay/internal/diagram"
	"github.com/relayworks/relay/internal/scheduler"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/internal/streaming"
	"github.com/relayworks/relay/pkg/schema"
)

// handleIngestEvent runs an inbound event through the triage pipeline.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source   string         `json:"source"`
		UserID   string         `json:"user_id"`
		Subject  string         `json:"subject"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	event := schema.InboundEvent{
		Source:   schema.TriggerType(body.Source),
		UserID:   body.UserID,
		Subject:  body.Subject,
		Content:  body.Content,
		Metadata: body.Metadata,
	}
	outcome, err := s.deps.Pipeline.ProcessEvent(r.Context(), event)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, outcome)
}

// handleStartExecution starts an execution of an existing workflow.
func (s *Server) handleStartExecution(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID string         `json:"workflow_id"`
		Payload    map[string]any `json:"payload"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	exec, err := s.deps.Pipeline.StartExecution(r.Context(), body.WorkflowID, body.Payload)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exec)
}

// handleGetExecution returns an execution with its step records.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snapshot, err := s.deps.Executor.Status(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if snapshot == nil || snapshot.Execution == nil {
		writeError(w, http.StatusNotFound, "execution not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleListExecutions lists executions with optional status/workflow filters.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := store.ExecutionFilter{
		WorkflowID: r.URL.Query().Get("workflow_id"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := schema.ExecutionStatus(v)
		filter.Status = &status
	}

	execs, err := s.deps.Store.ListExecutions(r.Context(), filter)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs, "count": len(execs)})
}

// handleCancelExecution cancels a queued, gated or running execution.
func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	if err := s.deps.Pipeline.Cancel(r.Context(), id, body.Reason); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"execution_id": id, "status": string(schema.ExecutionStatusCancelled)})
}

// handleExecutionEvents returns the audit log for an execution.
func (s *Server) handleExecutionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	exec, err := s.deps.Store.GetExecution(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if exec == nil {
		writeError(w, http.StatusNotFound, "execution not found: "+id)
		return
	}

	events, err := s.deps.Store.GetEvents(r.Context(), id, int64(queryInt(r, "since", 0)))
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// handleExecutionStream streams an execution's events to the client via
// Server-Sent Events until the connection drops.
func (s *Server) handleExecutionStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.deps.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "streaming not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), streaming.EventFilter{ExecutionID: id})
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		writeError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer cancel()
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// handlePendingApprovals lists pending requests for an approver.
func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	approverID := r.URL.Query().Get("approver_id")
	if approverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required")
		return
	}

	pending, err := s.deps.Approvals.PendingFor(r.Context(), approverID)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": pending, "count": len(pending)})
}

// handleApprovalHistory lists all requests raised by a user.
func (s *Server) handleApprovalHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	history, err := s.deps.Approvals.HistoryFor(r.Context(), userID)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": history, "count": len(history)})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, true)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, false)
}

// resolveApproval approves or rejects a pending request on behalf of the
// caller. A guard miss (already resolved, or wrong approver) maps to 409.
func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request, approve bool) {
	id := r.PathValue("id")

	var body struct {
		ApproverID string `json:"approver_id"`
		Reason     string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required")
		return
	}
	if !approve && body.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required to reject")
		return
	}

	ok, err := s.deps.Pipeline.ResolveApproval(r.Context(), id, body.ApproverID, approve, body.Reason)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "approval is not pending or approver does not match")
		return
	}

	status := schema.ApprovalApproved
	if !approve {
		status = schema.ApprovalRejected
	}
	writeJSON(w, http.StatusOK, map[string]string{"approval_id": id, "status": string(status)})
}

// handleEscalate hands a pending request off beyond the assigned approver.
// The gated execution stays parked until someone approves, rejects, or
// cancels it. Same guard semantics as approve and reject.
func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		ApproverID string `json:"approver_id"`
		Reason     string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.ApproverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required")
		return
	}
	if body.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required to escalate")
		return
	}

	ok, err := s.deps.Approvals.Escalate(r.Context(), id, body.ApproverID, body.Reason)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "approval is not pending or approver does not match")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"approval_id": id, "status": string(schema.ApprovalEscalated)})
}

// handleCreateWorkflow validates and stores a new workflow definition.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def schema.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.deps.Validator.ValidateDefinition(&def); err != nil {
		writeRelayError(w, err)
		return
	}

	if err := s.deps.Store.CreateWorkflow(r.Context(), &def); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &def)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := store.WorkflowFilter{
		TriggerType: schema.TriggerType(r.URL.Query().Get("trigger_type")),
		Limit:       queryInt(r, "limit", 100),
	}
	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled := v == "true"
		filter.Enabled = &enabled
	}

	workflows, err := s.deps.Store.ListWorkflows(r.Context(), filter)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": workflows, "count": len(workflows)})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	def, err := s.deps.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "workflow not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleWorkflowDiagram renders a workflow as a Mermaid flowchart. With
// ?execution_id= the step nodes carry that execution's status.
func (s *Server) handleWorkflowDiagram(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	def, err := s.deps.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "workflow not found: "+id)
		return
	}

	var records map[string]*store.StepRecord
	if execID := r.URL.Query().Get("execution_id"); execID != "" {
		list, err := s.deps.Store.ListStepRecords(r.Context(), execID)
		if err != nil {
			writeRelayError(w, err)
			return
		}
		records = make(map[string]*store.StepRecord, len(list))
		for _, rec := range list {
			records[rec.StepID] = rec
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(diagram.RenderMermaid(diagram.FromDefinition(def, records))))
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	def, err := s.deps.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "workflow not found: "+id)
		return
	}

	if err := s.deps.Store.DeleteWorkflow(r.Context(), id); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"workflow_id": id, "deleted": "true"})
}

// handleSetWorkflowEnabled flips the enabled flag. Definitions are
// otherwise immutable; re-create to version.
func (s *Server) handleSetWorkflowEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		def, err := s.deps.Store.GetWorkflow(r.Context(), id)
		if err != nil {
			writeRelayError(w, err)
			return
		}
		if def == nil {
			writeError(w, http.StatusNotFound, "workflow not found: "+id)
			return
		}

		def.Enabled = enabled
		def.UpdatedAt = time.Now().UTC()
		if err := s.deps.Store.UpdateWorkflow(r.Context(), def); err != nil {
			writeRelayError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workflow_id": id, "enabled": enabled})
	}
}

// handleListTemplates lists the builtin workflow templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := catalog.Builtin()
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "count": len(templates)})
}

// handleInstantiateTemplate creates a workflow from a builtin template.
func (s *Server) handleInstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	tmpl, ok := catalog.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "template not found: "+slug)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	def := tmpl.Instantiate(body.Name)
	if err := s.deps.Store.CreateWorkflow(r.Context(), def); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// handleCreateTrigger registers a cron trigger for a workflow.
func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID     string         `json:"workflow_id"`
		CronExpression string         `json:"cron_expression"`
		Payload        map[string]any `json:"payload"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.WorkflowID == "" || body.CronExpression == "" {
		writeError(w, http.StatusBadRequest, "workflow_id and cron_expression are required")
		return
	}

	def, err := s.deps.Store.GetWorkflow(r.Context(), body.WorkflowID)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "workflow not found: "+body.WorkflowID)
		return
	}

	now := time.Now().UTC()
	nextRun, err := scheduler.NextRun(body.CronExpression, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload json.RawMessage
	if body.Payload != nil {
		payload, err = json.Marshal(body.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
			return
		}
	}

	trig := &store.ScheduledTrigger{
		ID:             uuid.NewString(),
		WorkflowID:     body.WorkflowID,
		CronExpression: body.CronExpression,
		Payload:        payload,
		Enabled:        true,
		NextRunAt:      &nextRun,
		CreatedAt:      now,
	}
	if err := s.deps.Store.CreateScheduledTrigger(r.Context(), trig); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trig)
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	filter := store.ScheduledTriggerFilter{
		WorkflowID: r.URL.Query().Get("workflow_id"),
		Limit:      queryInt(r, "limit", 100),
	}
	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled := v == "true"
		filter.Enabled = &enabled
	}

	triggers, err := s.deps.Store.ListScheduledTriggers(r.Context(), filter)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggers": triggers, "count": len(triggers)})
}

// handleUpdateTrigger enables or disables a trigger.
func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	trig, err := s.deps.Store.GetScheduledTrigger(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if trig == nil {
		writeError(w, http.StatusNotFound, "trigger not found: "+id)
		return
	}

	update := store.ScheduledTriggerUpdate{Enabled: body.Enabled}
	if err := s.deps.Store.UpdateScheduledTrigger(r.Context(), id, update); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trigger_id": id, "enabled": *body.Enabled})
}

func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	trig, err := s.deps.Store.GetScheduledTrigger(r.Context(), id)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if trig == nil {
		writeError(w, http.StatusNotFound, "trigger not found: "+id)
		return
	}

	if err := s.deps.Store.DeleteScheduledTrigger(r.Context(), id); err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trigger_id": id, "deleted": "true"})
}
