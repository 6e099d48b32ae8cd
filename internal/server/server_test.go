package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/relay/internal/approval"
	"github.com/relayworks/relay/internal/engine"
	"github.com/relayworks/relay/internal/orchestrator"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/internal/validation"
	"github.com/relayworks/relay/pkg/schema"
)

// fakePipeline records calls and returns scripted results.
type fakePipeline struct {
	mu          sync.Mutex
	events      []schema.InboundEvent
	started     []string
	cancelled   []string
	outcome     *orchestrator.TriageOutcome
	startErr    error
	resolveOK   bool
	resolveErr  error
	resolutions []string
}

func (f *fakePipeline) ProcessEvent(_ context.Context, event schema.InboundEvent) (*orchestrator.TriageOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &orchestrator.TriageOutcome{ExecutionID: "exec-1", Status: schema.ExecutionStatusPending}, nil
}

func (f *fakePipeline) StartExecution(_ context.Context, workflowID string, payload map[string]any) (*store.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, workflowID)
	return &store.Execution{ID: "exec-1", WorkflowID: workflowID, Status: schema.ExecutionStatusPending, TriggerPayload: payload}, nil
}

func (f *fakePipeline) Cancel(_ context.Context, executionID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, executionID)
	return nil
}

func (f *fakePipeline) ResolveApproval(_ context.Context, approvalID, _ string, _ bool, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolutions = append(f.resolutions, approvalID)
	return f.resolveOK, f.resolveErr
}

// fakeExecutor serves Status snapshots from a map.
type fakeExecutor struct {
	engine.Executor
	snapshots map[string]*engine.ExecutionSnapshot
}

func (f *fakeExecutor) Status(_ context.Context, id string) (*engine.ExecutionSnapshot, error) {
	return f.snapshots[id], nil
}

// fakeStore covers the store methods the handlers touch.
type fakeStore struct {
	store.Store

	mu        sync.Mutex
	workflows map[string]*schema.WorkflowDefinition
	execs     map[string]*store.Execution
	events    map[string][]*store.Event
	steps     map[string][]*store.StepRecord
	triggers  map[string]*store.ScheduledTrigger
	approvals map[string]*schema.ApprovalRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workflows: make(map[string]*schema.WorkflowDefinition),
		execs:     make(map[string]*store.Execution),
		events:    make(map[string][]*store.Event),
		steps:     make(map[string][]*store.StepRecord),
		triggers:  make(map[string]*store.ScheduledTrigger),
		approvals: make(map[string]*schema.ApprovalRequest),
	}
}

func (f *fakeStore) CreateWorkflow(_ context.Context, def *schema.WorkflowDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *def
	f.workflows[def.ID] = &cp
	return nil
}

func (f *fakeStore) GetWorkflow(_ context.Context, id string) (*schema.WorkflowDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.workflows[id]
	if !ok {
		return nil, nil
	}
	cp := *def
	return &cp, nil
}

func (f *fakeStore) UpdateWorkflow(_ context.Context, def *schema.WorkflowDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *def
	f.workflows[def.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteWorkflow(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workflows, id)
	return nil
}

func (f *fakeStore) ListWorkflows(_ context.Context, filter store.WorkflowFilter) ([]*schema.WorkflowDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*schema.WorkflowDefinition
	for _, def := range f.workflows {
		if filter.Enabled != nil && def.Enabled != *filter.Enabled {
			continue
		}
		cp := *def
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) GetExecution(_ context.Context, id string) (*store.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.execs[id]
	if !ok {
		return nil, nil
	}
	cp := *exec
	return &cp, nil
}

func (f *fakeStore) ListExecutions(_ context.Context, filter store.ExecutionFilter) ([]*store.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Execution
	for _, exec := range f.execs {
		if filter.Status != nil && exec.Status != *filter.Status {
			continue
		}
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		cp := *exec
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) ListStepRecords(_ context.Context, executionID string) ([]*store.StepRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.StepRecord
	for _, rec := range f.steps[executionID] {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) GetEvents(_ context.Context, executionID string, since int64) ([]*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Event
	for _, ev := range f.events[executionID] {
		if ev.Sequence > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) ListApprovals(_ context.Context, filter store.ApprovalFilter) ([]*schema.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*schema.ApprovalRequest
	for _, req := range f.approvals {
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.ApproverID != "" && req.ApproverID != filter.ApproverID {
			continue
		}
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) ResolveApproval(_ context.Context, id, approverID string, status schema.ApprovalStatus, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.approvals[id]
	if !ok || req.Status != schema.ApprovalPending || req.ApproverID != approverID {
		return false, nil
	}
	now := time.Now().UTC()
	req.Status = status
	req.ResponseReason = reason
	req.RespondedAt = &now
	return true, nil
}

func (f *fakeStore) CreateScheduledTrigger(_ context.Context, trig *store.ScheduledTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *trig
	f.triggers[trig.ID] = &cp
	return nil
}

func (f *fakeStore) GetScheduledTrigger(_ context.Context, id string) (*store.ScheduledTrigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	trig, ok := f.triggers[id]
	if !ok {
		return nil, nil
	}
	cp := *trig
	return &cp, nil
}

func (f *fakeStore) UpdateScheduledTrigger(_ context.Context, id string, update store.ScheduledTriggerUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if update.Enabled != nil {
		f.triggers[id].Enabled = *update.Enabled
	}
	return nil
}

func (f *fakeStore) ListScheduledTriggers(_ context.Context, _ store.ScheduledTriggerFilter) ([]*store.ScheduledTrigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.ScheduledTrigger
	for _, trig := range f.triggers {
		cp := *trig
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) DeleteScheduledTrigger(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.triggers, id)
	return nil
}

type testEnv struct {
	server   *httptest.Server
	pipeline *fakePipeline
	store    *fakeStore
	executor *fakeExecutor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs := newFakeStore()
	fp := &fakePipeline{resolveOK: true}
	fe := &fakeExecutor{snapshots: make(map[string]*engine.ExecutionSnapshot)}

	wv, err := validation.NewWorkflowValidator(nil)
	require.NoError(t, err)

	srv := New(Deps{
		Store:     fs,
		Pipeline:  fp,
		Approvals: approval.NewManager(fs, approval.Config{}, nil),
		Executor:  fe,
		Validator: wv,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, pipeline: fp, store: fs, executor: fe}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestIngestEvent(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/events", map[string]any{
		"source":  "email_received",
		"user_id": "user-1",
		"content": "please schedule a meeting",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "exec-1", body["execution_id"])

	require.Len(t, env.pipeline.events, 1)
	assert.Equal(t, schema.TriggerEmailReceived, env.pipeline.events[0].Source)
}

func TestIngestEvent_MissingContent(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/events", map[string]any{"user_id": "user-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.pipeline.events)
}

func TestStartExecution(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/executions", map[string]any{
		"workflow_id": "wf-1",
		"payload":     map[string]any{"subject": "hi"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "exec-1", body["id"])
	assert.Equal(t, []string{"wf-1"}, env.pipeline.started)
}

func TestStartExecution_MissingWorkflowID(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/executions", map[string]any{"payload": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartExecution_NotFoundMapsTo404(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.startErr = schema.NewError(schema.ErrCodeNotFound, "workflow not found: nope")

	resp, body := env.do(t, http.MethodPost, "/api/executions", map[string]any{"workflow_id": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, schema.ErrCodeNotFound, body["code"])
}

func TestGetExecution(t *testing.T) {
	env := newTestEnv(t)
	env.executor.snapshots["exec-1"] = &engine.ExecutionSnapshot{
		Execution: &store.Execution{ID: "exec-1", Status: schema.ExecutionStatusRunning},
	}

	resp, body := env.do(t, http.MethodGet, "/api/executions/exec-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	exec := body["execution"].(map[string]any)
	assert.Equal(t, "exec-1", exec["id"])
}

func TestGetExecution_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/executions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelExecution(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/executions/exec-9/cancel", map[string]any{"reason": "obsolete"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, []string{"exec-9"}, env.pipeline.cancelled)
}

func TestExecutionEvents(t *testing.T) {
	env := newTestEnv(t)
	env.store.execs["exec-1"] = &store.Execution{ID: "exec-1"}
	env.store.events["exec-1"] = []*store.Event{
		{ExecutionID: "exec-1", Type: schema.EventExecutionStarted, Sequence: 1},
		{ExecutionID: "exec-1", Type: schema.EventExecutionCompleted, Sequence: 2},
	}

	resp, body := env.do(t, http.MethodGet, "/api/executions/exec-1/events", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])
}

func TestExecutionEvents_UnknownExecution(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/executions/ghost/events", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPendingApprovals(t *testing.T) {
	env := newTestEnv(t)
	env.store.approvals["ap-1"] = &schema.ApprovalRequest{
		ID: "ap-1", ApproverID: "manager@company.com", Status: schema.ApprovalPending,
	}
	env.store.approvals["ap-2"] = &schema.ApprovalRequest{
		ID: "ap-2", ApproverID: "other@company.com", Status: schema.ApprovalPending,
	}

	resp, body := env.do(t, http.MethodGet, "/api/approvals?approver_id=manager@company.com", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
}

func TestPendingApprovals_RequiresApprover(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/approvals", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApprovalHistory(t *testing.T) {
	env := newTestEnv(t)
	env.store.approvals["ap-1"] = &schema.ApprovalRequest{
		ID: "ap-1", RequesterID: "user-1", Status: schema.ApprovalAutoApproved,
	}

	resp, body := env.do(t, http.MethodGet, "/api/approvals/history?user_id=user-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
}

func TestApprove(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/approvals/ap-1/approve", map[string]any{
		"approver_id": "manager@company.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, []string{"ap-1"}, env.pipeline.resolutions)
}

func TestApprove_GuardMissMapsTo409(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.resolveOK = false

	resp, _ := env.do(t, http.MethodPost, "/api/approvals/ap-1/approve", map[string]any{
		"approver_id": "intruder@company.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReject_RequiresReason(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/approvals/ap-1/reject", map[string]any{
		"approver_id": "manager@company.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.pipeline.resolutions)
}

func TestEscalate(t *testing.T) {
	env := newTestEnv(t)
	env.store.approvals["ap-1"] = &schema.ApprovalRequest{
		ID: "ap-1", ApproverID: "manager@company.com", Status: schema.ApprovalPending,
	}

	resp, body := env.do(t, http.MethodPost, "/api/approvals/ap-1/escalate", map[string]any{
		"approver_id": "manager@company.com",
		"reason":      "needs director sign-off",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "escalated", body["status"])
	assert.Equal(t, schema.ApprovalEscalated, env.store.approvals["ap-1"].Status)
}

func TestEscalate_RequiresReason(t *testing.T) {
	env := newTestEnv(t)
	env.store.approvals["ap-1"] = &schema.ApprovalRequest{
		ID: "ap-1", ApproverID: "manager@company.com", Status: schema.ApprovalPending,
	}

	resp, _ := env.do(t, http.MethodPost, "/api/approvals/ap-1/escalate", map[string]any{
		"approver_id": "manager@company.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, schema.ApprovalPending, env.store.approvals["ap-1"].Status)
}

func TestEscalate_GuardMissMapsTo409(t *testing.T) {
	env := newTestEnv(t)
	env.store.approvals["ap-1"] = &schema.ApprovalRequest{
		ID: "ap-1", ApproverID: "manager@company.com", Status: schema.ApprovalApproved,
	}

	resp, _ := env.do(t, http.MethodPost, "/api/approvals/ap-1/escalate", map[string]any{
		"approver_id": "manager@company.com",
		"reason":      "too late",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func workflowBody() map[string]any {
	return map[string]any{
		"id":   "wf-api",
		"name": "api workflow",
		"trigger": map[string]any{
			"id":   "trigger",
			"type": "manual",
		},
		"steps": []map[string]any{
			{"id": "notify", "type": "send_notification", "config": map[string]any{"recipient": "ops", "message": "hi"}},
		},
		"connections": []map[string]any{
			{"id": "c1", "from_id": "trigger", "to_id": "notify"},
		},
	}
}

func TestCreateWorkflow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/workflows", workflowBody())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "wf-api", body["id"])

	stored, err := env.store.GetWorkflow(context.Background(), "wf-api")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCreateWorkflow_InvalidDefinition(t *testing.T) {
	env := newTestEnv(t)

	invalid := workflowBody()
	delete(invalid, "name")
	resp, body := env.do(t, http.MethodPost, "/api/workflows", invalid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, schema.ErrCodeValidation, body["code"])
}

func TestWorkflowEnableDisable(t *testing.T) {
	env := newTestEnv(t)
	env.store.workflows["wf-1"] = &schema.WorkflowDefinition{ID: "wf-1", Name: "one", Enabled: true}

	resp, _ := env.do(t, http.MethodPost, "/api/workflows/wf-1/disable", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	def, _ := env.store.GetWorkflow(context.Background(), "wf-1")
	assert.False(t, def.Enabled)

	resp, _ = env.do(t, http.MethodPost, "/api/workflows/wf-1/enable", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	def, _ = env.store.GetWorkflow(context.Background(), "wf-1")
	assert.True(t, def.Enabled)
}

func TestWorkflowDiagram(t *testing.T) {
	env := newTestEnv(t)
	env.store.workflows["wf-1"] = &schema.WorkflowDefinition{
		ID: "wf-1", Name: "one",
		Trigger: schema.Trigger{ID: "trigger", Type: schema.TriggerManual},
		Steps: []schema.Step{
			{ID: "notify", Type: schema.StepSendNotification},
		},
		Connections: []schema.Connection{
			{ID: "c1", FromID: "trigger", ToID: "notify"},
		},
	}
	env.store.steps["exec-1"] = []*store.StepRecord{
		{ExecutionID: "exec-1", StepID: "notify", Status: schema.StepStatusCompleted},
	}

	resp, err := http.Get(env.server.URL + "/api/workflows/wf-1/diagram?execution_id=exec-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "graph TD")
	assert.Contains(t, string(raw), "class notify completed")
}

func TestWorkflowDiagram_UnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/workflows/ghost/diagram", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWorkflow_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodDelete, "/api/workflows/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListTemplates(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/templates", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["count"])
}

func TestInstantiateTemplate(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/templates/email-to-task/instantiate", map[string]any{
		"name": "My Inbox Flow",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "My Inbox Flow", body["name"])

	id, ok := body["id"].(string)
	require.True(t, ok)
	stored, err := env.store.GetWorkflow(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Enabled)
}

func TestInstantiateTemplate_UnknownSlug(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/templates/nope/instantiate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTrigger(t *testing.T) {
	env := newTestEnv(t)
	env.store.workflows["wf-1"] = &schema.WorkflowDefinition{ID: "wf-1", Name: "one", Enabled: true}

	resp, body := env.do(t, http.MethodPost, "/api/triggers", map[string]any{
		"workflow_id":     "wf-1",
		"cron_expression": "0 9 * * *",
		"payload":         map[string]any{"report": "daily"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["next_run_at"])
}

func TestCreateTrigger_InvalidCron(t *testing.T) {
	env := newTestEnv(t)
	env.store.workflows["wf-1"] = &schema.WorkflowDefinition{ID: "wf-1", Name: "one", Enabled: true}

	resp, _ := env.do(t, http.MethodPost, "/api/triggers", map[string]any{
		"workflow_id":     "wf-1",
		"cron_expression": "not a cron",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateTrigger_UnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/triggers", map[string]any{
		"workflow_id":     "ghost",
		"cron_expression": "0 9 * * *",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateTrigger(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.store.triggers["trig-1"] = &store.ScheduledTrigger{
		ID: "trig-1", WorkflowID: "wf-1", CronExpression: "0 9 * * *", Enabled: true, CreatedAt: now,
	}

	resp, _ := env.do(t, http.MethodPut, "/api/triggers/trig-1", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	trig, _ := env.store.GetScheduledTrigger(context.Background(), "trig-1")
	assert.False(t, trig.Enabled)
}

func TestDeleteTrigger(t *testing.T) {
	env := newTestEnv(t)
	env.store.triggers["trig-1"] = &store.ScheduledTrigger{ID: "trig-1"}

	resp, _ := env.do(t, http.MethodDelete, "/api/triggers/trig-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	trig, _ := env.store.GetScheduledTrigger(context.Background(), "trig-1")
	assert.Nil(t, trig)
}
