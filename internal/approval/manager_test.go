package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements only the approval surface of store.Store.
type fakeStore struct {
	store.Store

	mu        sync.Mutex
	approvals map[string]*schema.ApprovalRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{approvals: make(map[string]*schema.ApprovalRequest)}
}

func (f *fakeStore) CreateApproval(_ context.Context, req *schema.ApprovalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.approvals[req.ID] = &cp
	return nil
}

func (f *fakeStore) GetApproval(_ context.Context, id string) (*schema.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.approvals[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "approval %s not found", id)
	}
	cp := *req
	return &cp, nil
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

func newTestManager(t *testing.T) (*Manager, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	return NewManager(st, Config{}, nil), st
}

func action(kind schema.ActionKind, priority schema.Priority) *schema.Action {
	return &schema.Action{
		ID:        "act-1",
		Kind:      kind,
		Operation: "do_thing",
		Priority:  priority,
		Payload:   map[string]any{},
	}
}

func TestConfidenceScore(t *testing.T) {
	cases := []struct {
		kind     schema.ActionKind
		priority schema.Priority
		want     float64
	}{
		{schema.ActionScheduling, schema.PriorityLow, 0.95},
		{schema.ActionScheduling, schema.PriorityMedium, 0.85},
		{schema.ActionTriage, schema.PriorityMedium, 0.80},
		{schema.ActionFollowUp, schema.PriorityCritical, 0.65},
		{schema.ActionEscalation, schema.PriorityCritical, 0.60},
		{schema.ActionDecision, schema.PriorityLow, 0.80},
		{schema.ActionResearch, schema.PriorityHigh, 0.70},
	}
	for _, tc := range cases {
		got := ConfidenceScore(action(tc.kind, tc.priority))
		assert.InDelta(t, tc.want, got, 1e-9, "%s/%s", tc.kind, tc.priority)
	}
}

func TestConfidenceScoreStaysClamped(t *testing.T) {
	kinds := []schema.ActionKind{
		schema.ActionTriage, schema.ActionScheduling, schema.ActionFollowUp,
		schema.ActionEscalation, schema.ActionDecision, schema.ActionResearch,
	}
	priorities := []schema.Priority{
		schema.PriorityLow, schema.PriorityMedium, schema.PriorityHigh, schema.PriorityCritical,
	}
	for _, k := range kinds {
		for _, p := range priorities {
			score := ConfidenceScore(action(k, p))
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestRequest_LowPrioritySchedulingAutoApproves(t *testing.T) {
	m, st := newTestManager(t)

	req, err := m.Request(context.Background(), action(schema.ActionScheduling, schema.PriorityLow), "user-1", "exec-1")
	require.NoError(t, err)

	assert.Equal(t, schema.ApprovalAutoApproved, req.Status)
	assert.InDelta(t, 0.95, req.ConfidenceScore, 1e-9)
	require.NotNil(t, req.RespondedAt)
	assert.NotEmpty(t, req.ResponseReason)

	pending, err := m.PendingFor(context.Background(), DefaultApprover)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, err := st.GetApproval(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalAutoApproved, stored.Status)
}

func TestRequest_RequiresApprovalAlwaysPends(t *testing.T) {
	m, _ := newTestManager(t)

	act := action(schema.ActionScheduling, schema.PriorityLow)
	act.RequiresApproval = true
	req, err := m.Request(context.Background(), act, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, schema.ApprovalPending, req.Status)
	assert.Nil(t, req.RespondedAt)
}

func TestRequest_LowConfidencePends(t *testing.T) {
	m, _ := newTestManager(t)

	req, err := m.Request(context.Background(), action(schema.ActionEscalation, schema.PriorityCritical), "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, schema.ApprovalPending, req.Status)
	assert.Equal(t, DefaultApprover, req.ApproverID)
	assert.NotEmpty(t, req.Reasoning)
}

func TestRequest_ApproverFromPayload(t *testing.T) {
	m, _ := newTestManager(t)

	act := action(schema.ActionDecision, schema.PriorityHigh)
	act.Payload["approver_id"] = "lead@company.com"
	req, err := m.Request(context.Background(), act, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, "lead@company.com", req.ApproverID)
}

func TestRequest_ActionThresholdOverridesConfig(t *testing.T) {
	m, _ := newTestManager(t)

	// Low-priority scheduling scores 0.95, above the default threshold,
	// but the action demands more.
	act := action(schema.ActionScheduling, schema.PriorityLow)
	act.ApprovalConfidenceThreshold = 0.97
	req, err := m.Request(context.Background(), act, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalPending, req.Status)

	// Critical escalation scores 0.60, below the default threshold, but
	// the action's own bar is lower still.
	lax := action(schema.ActionEscalation, schema.PriorityCritical)
	lax.ApprovalConfidenceThreshold = 0.5
	req, err = m.Request(context.Background(), lax, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalAutoApproved, req.Status)
}

func TestRequest_AutoApproveMarksAction(t *testing.T) {
	m, _ := newTestManager(t)

	act := action(schema.ActionScheduling, schema.PriorityLow)
	act.Status = schema.ActionStatusPending
	_, err := m.Request(context.Background(), act, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, schema.ActionStatusApproved, act.Status)

	gated := action(schema.ActionEscalation, schema.PriorityCritical)
	gated.Status = schema.ActionStatusPending
	_, err = m.Request(context.Background(), gated, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, schema.ActionStatusPending, gated.Status)
}

func TestApprove_PendingRequest(t *testing.T) {
	m, st := newTestManager(t)
	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)
	require.Equal(t, schema.ApprovalPending, req.Status)

	ok, err := m.Approve(context.Background(), req.ID, DefaultApprover, "looks fine")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := st.GetApproval(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalApproved, stored.Status)
	assert.Equal(t, "looks fine", stored.ResponseReason)
	assert.NotNil(t, stored.RespondedAt)
}

func TestReject_PendingRequest(t *testing.T) {
	m, st := newTestManager(t)
	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)

	ok, err := m.Reject(context.Background(), req.ID, DefaultApprover, "not now")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := st.GetApproval(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalRejected, stored.Status)
}

func TestEscalate_PendingRequest(t *testing.T) {
	m, st := newTestManager(t)
	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)
	require.Equal(t, schema.ApprovalPending, req.Status)

	ok, err := m.Escalate(context.Background(), req.ID, DefaultApprover, "above my pay grade")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := st.GetApproval(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalEscalated, stored.Status)
	assert.Equal(t, "above my pay grade", stored.ResponseReason)

	// Escalated requests are out of the pending set and cannot be
	// approved through the normal path anymore.
	ok, err = m.Approve(context.Background(), req.ID, DefaultApprover, "late")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEscalate_WrongApproverReturnsFalse(t *testing.T) {
	m, st := newTestManager(t)
	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)

	ok, err := m.Escalate(context.Background(), req.ID, "someone-else", "grab")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := st.GetApproval(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalPending, stored.Status)
}

func TestApprove_WrongApproverNoMutation(t *testing.T) {
	m, st := newTestManager(t)
	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)

	ok, err := m.Approve(context.Background(), req.ID, "someone-else", "sneaky")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := st.GetApproval(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ApprovalPending, stored.Status)
	assert.Empty(t, stored.ResponseReason)
}

func TestApprove_AlreadyResolvedReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)

	ok, err := m.Approve(context.Background(), req.ID, DefaultApprover, "first")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Reject(context.Background(), req.ID, DefaultApprover, "second")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApprove_UnknownIDReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	ok, err := m.Approve(context.Background(), "missing", DefaultApprover, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingForFiltersByApprover(t *testing.T) {
	m, _ := newTestManager(t)

	actA := action(schema.ActionDecision, schema.PriorityHigh)
	actA.Payload["approver_id"] = "a@company.com"
	_, err := m.Request(context.Background(), actA, "user-1", "")
	require.NoError(t, err)

	actB := action(schema.ActionDecision, schema.PriorityHigh)
	actB.ID = "act-2"
	actB.Payload["approver_id"] = "b@company.com"
	_, err = m.Request(context.Background(), actB, "user-1", "")
	require.NoError(t, err)

	pending, err := m.PendingFor(context.Background(), "a@company.com")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "act-1", pending[0].ActionID)
}

func TestHistoryForIncludesResolvedAndAutoApproved(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Request(context.Background(), action(schema.ActionScheduling, schema.PriorityLow), "user-1", "")
	require.NoError(t, err)

	req, err := m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-1", "")
	require.NoError(t, err)
	_, err = m.Approve(context.Background(), req.ID, DefaultApprover, "ok")
	require.NoError(t, err)

	_, err = m.Request(context.Background(), action(schema.ActionDecision, schema.PriorityHigh), "user-2", "")
	require.NoError(t, err)

	history, err := m.HistoryFor(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
