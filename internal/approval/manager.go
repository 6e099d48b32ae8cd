// Package approval gates actions behind human decisions. A confidence score
// computed from the action's kind and priority decides whether the action
// may proceed autonomously or must wait for its assigned approver.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/pkg/schema"
)

const (
	// DefaultThreshold is the confidence above which unguarded actions
	// skip the human entirely.
	DefaultThreshold = 0.8

	// DefaultApprover receives requests when no policy names an approver.
	DefaultApprover = "manager@company.com"

	baseConfidence = 0.7
)

// kindAdjustments tune the base confidence per action kind. Kinds absent
// from the map contribute nothing.
var kindAdjustments = map[schema.ActionKind]float64{
	schema.ActionScheduling: 0.15,
	schema.ActionTriage:     0.10,
	schema.ActionFollowUp:   0.05,
}

// Config controls approval routing and the auto-approval threshold.
type Config struct {
	Threshold       float64
	DefaultApprover string
}

// Manager owns the approval lifecycle. It is the only component that writes
// approval state; all transitions go through the store's guarded resolve.
type Manager struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
}

func NewManager(st store.Store, cfg Config, logger *slog.Logger) *Manager {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.DefaultApprover == "" {
		cfg.DefaultApprover = DefaultApprover
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: st, cfg: cfg, logger: logger.With("component", "approval")}
}

// ConfidenceScore computes how certain the system is that the action may run
// without a human: base 0.7, plus the kind adjustment, minus 0.10 for
// critical priority, plus 0.10 for low priority, clamped to [0, 1].
func ConfidenceScore(action *schema.Action) float64 {
	score := baseConfidence + kindAdjustments[action.Kind]
	switch action.Priority {
	case schema.PriorityCritical:
		score -= 0.10
	case schema.PriorityLow:
		score += 0.10
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Request evaluates the action and either auto-approves it or persists a
// pending request for the assigned approver. Both outcomes land in the
// approval history; only the pending one waits on a human.
func (m *Manager) Request(ctx context.Context, action *schema.Action, requesterID, executionID string) (*schema.ApprovalRequest, error) {
	score := ConfidenceScore(action)

	req := &schema.ApprovalRequest{
		ID:              uuid.NewString(),
		ActionID:        action.ID,
		ExecutionID:     executionID,
		RequesterID:     requesterID,
		ApproverID:      m.approverFor(action),
		Description:     action.Description,
		Priority:        action.Priority,
		Payload:         action.Payload,
		ConfidenceScore: score,
		Reasoning:       reasoningFor(action, score),
		Status:          schema.ApprovalPending,
		CreatedAt:       time.Now().UTC(),
	}

	// The action's own threshold wins over the manager-wide one when set.
	threshold := m.cfg.Threshold
	if action.ApprovalConfidenceThreshold > 0 {
		threshold = action.ApprovalConfidenceThreshold
	}
	if score >= threshold && !action.RequiresApproval {
		now := time.Now().UTC()
		req.Status = schema.ApprovalAutoApproved
		req.RespondedAt = &now
		req.ResponseReason = fmt.Sprintf("confidence %.2f at or above threshold %.2f", score, threshold)
		action.Status = schema.ActionStatusApproved
	}

	if err := m.store.CreateApproval(ctx, req); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "persist approval for action %s", action.ID).WithCause(err)
	}

	m.logger.Info("approval requested",
		"approval_id", req.ID,
		"action_id", action.ID,
		"status", req.Status,
		"confidence", score,
		"approver_id", req.ApproverID)
	return req, nil
}

// Approve resolves a pending request positively. Returns false without
// mutation when the request is not pending or approverID does not match.
func (m *Manager) Approve(ctx context.Context, id, approverID, reason string) (bool, error) {
	return m.resolve(ctx, id, approverID, schema.ApprovalApproved, reason)
}

// Reject resolves a pending request negatively under the same guard as
// Approve.
func (m *Manager) Reject(ctx context.Context, id, approverID, reason string) (bool, error) {
	return m.resolve(ctx, id, approverID, schema.ApprovalRejected, reason)
}

// Escalate marks a pending request as handed off beyond the assigned
// approver. The gated execution stays parked; it can still be cancelled.
// Same guard as Approve.
func (m *Manager) Escalate(ctx context.Context, id, approverID, reason string) (bool, error) {
	return m.resolve(ctx, id, approverID, schema.ApprovalEscalated, reason)
}

func (m *Manager) resolve(ctx context.Context, id, approverID string, status schema.ApprovalStatus, reason string) (bool, error) {
	ok, err := m.store.ResolveApproval(ctx, id, approverID, status, reason)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeStore, "resolve approval %s", id).WithCause(err)
	}
	if !ok {
		m.logger.Warn("approval resolve rejected",
			"approval_id", id, "approver_id", approverID, "status", status)
		return false, nil
	}
	m.logger.Info("approval resolved",
		"approval_id", id, "approver_id", approverID, "status", status)
	return true, nil
}

// Get returns one approval request by id.
func (m *Manager) Get(ctx context.Context, id string) (*schema.ApprovalRequest, error) {
	return m.store.GetApproval(ctx, id)
}

// PendingFor lists requests still waiting on the given approver.
func (m *Manager) PendingFor(ctx context.Context, approverID string) ([]*schema.ApprovalRequest, error) {
	pending := schema.ApprovalPending
	return m.store.ListApprovals(ctx, store.ApprovalFilter{
		Status:     &pending,
		ApproverID: approverID,
	})
}

// HistoryFor lists every request ever raised on behalf of the given
// requester, regardless of outcome.
func (m *Manager) HistoryFor(ctx context.Context, requesterID string) ([]*schema.ApprovalRequest, error) {
	return m.store.ListApprovals(ctx, store.ApprovalFilter{RequesterID: requesterID})
}

func (m *Manager) approverFor(action *schema.Action) string {
	if v, ok := action.Payload["approver_id"].(string); ok && v != "" {
		return v
	}
	return m.cfg.DefaultApprover
}

func reasoningFor(action *schema.Action, score float64) string {
	return fmt.Sprintf("%s action %q with priority %s scored %.2f",
		action.Kind, action.Operation, action.Priority, score)
}
